package schema

import (
	"strings"

	"github.com/terranova-labs/listingd/pkg/database"
)

// aliasTable maps internal field names to external ones for one object
// shape. Nested tables apply to object or array-of-object fields.
type aliasTable struct {
	toExternal map[string]string
	toInternal map[string]string
	nested     map[string]*aliasTable
}

func newAliasTable(pairs map[string]string, nested map[string]*aliasTable) *aliasTable {
	t := &aliasTable{
		toExternal: pairs,
		toInternal: make(map[string]string, len(pairs)),
		nested:     nested,
	}
	for internal, external := range pairs {
		t.toInternal[external] = internal
	}
	return t
}

var addressAliases = newAliasTable(map[string]string{
	"address_line1":      "addressLine1",
	"address_line2":      "addressLine2",
	"city":               "city",
	"postcode":           "postcode",
	"shortened_postcode": "shortenedPostcode",
	"country":            "country",
	"region":             "region",
}, nil)

var photoAliases = newAliasTable(map[string]string{
	"original_url":  "originalURL",
	"standard_url":  "standardURL",
	"thumbnail_url": "thumbnailURL",
	"mime_type":     "mimeType",
}, nil)

var listingAliases = newAliasTable(map[string]string{
	"id":                             "id",
	"address_details":                "addressDetails",
	"property_type":                  "propertyType",
	"bedrooms":                       "bedrooms",
	"bathrooms":                      "bathrooms",
	"size_sq_ft":                     "sizeSqFt",
	"price_in_cents":                 "priceInCents",
	"minimum_deposit_in_cents":       "minimumDepositInCents",
	"estimated_deposit_in_cents":     "estimatedDepositInCents",
	"monthly_rental_income_in_cents": "monthlyRentalIncomeInCents",
	"gross_yield":                    "grossYield",
	"is_tenanted":                    "isTenanted",
	"is_cash_only":                   "isCashOnly",
	"is_new_build":                   "isNewBuild",
	"is_company":                     "isCompany",
	"is_share_sale":                  "isShareSale",
	"description":                    "description",
	"photos":                         "photos",
	"made_visible_at":                "madeVisibleAt",
	"development_name":               "developmentName",
	"is_featured":                    "isFeatured",
	"created_at":                     "createdAt",
	"updated_at":                     "updatedAt",
}, map[string]*aliasTable{
	"address_details": addressAliases,
	"photos":          photoAliases,
})

func tableFor(collection string) *aliasTable {
	if collection == database.CollectionListings {
		return listingAliases
	}
	return nil
}

// ToExternal returns a copy of rec with field names as clients see them.
func ToExternal(collection string, rec database.Record) map[string]any {
	if rec == nil {
		return nil
	}
	t := tableFor(collection)
	if t == nil {
		return map[string]any(rec.Clone())
	}
	return t.rename(rec, true)
}

// ToExternalAll applies ToExternal to every record.
func ToExternalAll(collection string, recs []database.Record) []map[string]any {
	out := make([]map[string]any, len(recs))
	for i, rec := range recs {
		out[i] = ToExternal(collection, rec)
	}
	return out
}

// ToInternal returns a copy of body with field names as the store keeps them.
// Unknown fields pass through unchanged.
func ToInternal(collection string, body map[string]any) database.Record {
	if body == nil {
		return nil
	}
	t := tableFor(collection)
	if t == nil {
		return database.Record(body).Clone()
	}
	return database.Record(t.rename(body, false))
}

// InternalKey translates a client-facing filter key. Dotted paths and
// JSONPath keys ("$.addressDetails.city") are translated segment by segment.
func InternalKey(collection, key string) string {
	t := tableFor(collection)
	if t == nil {
		return key
	}

	prefix := ""
	rest := key
	if strings.HasPrefix(rest, "$.") {
		prefix, rest = "$.", rest[2:]
	}

	segments := strings.Split(rest, ".")
	current := t
	for i, seg := range segments {
		if current == nil {
			break
		}
		name, suffix := seg, ""
		if j := strings.IndexByte(seg, '['); j >= 0 {
			name, suffix = seg[:j], seg[j:]
		}
		internal, ok := current.toInternal[name]
		if !ok {
			break
		}
		segments[i] = internal + suffix
		current = current.nested[internal]
	}
	return prefix + strings.Join(segments, ".")
}

func (t *aliasTable) rename(m map[string]any, external bool) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		internal := k
		name := k
		if external {
			if ext, ok := t.toExternal[k]; ok {
				name = ext
			}
		} else if in, ok := t.toInternal[k]; ok {
			internal, name = in, in
		}

		nested := t.nested[internal]
		if nested == nil {
			out[name] = cloneValue(v)
			continue
		}
		out[name] = nested.renameValue(v, external)
	}
	return out
}

func (t *aliasTable) renameValue(v any, external bool) any {
	switch val := v.(type) {
	case database.Record:
		return t.rename(val, external)
	case map[string]any:
		return t.rename(val, external)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = t.renameValue(e, external)
		}
		return out
	default:
		return cloneValue(v)
	}
}

func cloneValue(v any) any {
	wrapped := database.Record{"v": v}.Clone()
	return wrapped["v"]
}
