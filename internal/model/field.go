package model

import "strings"

// Field names a consolidated output field.
type Field string

const (
	FieldName         Field = "name"
	FieldDescription  Field = "description"
	FieldIndustry     Field = "industry"
	FieldSize         Field = "company_size"
	FieldHeadquarters Field = "headquarters"
	FieldWebsite      Field = "website"
	FieldFounded      Field = "founded_year"
	FieldSpecialties  Field = "specialties"
	FieldEmployees    Field = "employee_count"
	FieldFollowers    Field = "followers"
	FieldEmail        Field = "email"
	FieldPhone        Field = "phone"
	FieldAddress      Field = "address"
	FieldLogo         Field = "logo"
	FieldProfileURL   Field = "profile_url"
	FieldProducts     Field = "products"
)

// FieldKind is the value shape a field is cleaned into.
type FieldKind int

const (
	KindText FieldKind = iota + 1
	KindList
	KindCount
	KindYear
	KindURL
	KindEmail
	KindPhone
)

// FieldSpec describes one entry of the field table.
type FieldSpec struct {
	Field   Field
	Kind    FieldKind
	Aliases []string
	Contact bool // filled by the contact-page pass
}

var fieldSpecs = []FieldSpec{
	{Field: FieldName, Kind: KindText, Aliases: []string{"company_name", "legalname", "organization", "organization_name", "og:site_name", "business_name"}},
	{Field: FieldDescription, Kind: KindText, Aliases: []string{"about", "summary", "tagline", "og:description", "overview", "bio"}},
	{Field: FieldIndustry, Kind: KindText, Aliases: []string{"sector", "category", "industries"}},
	{Field: FieldSize, Kind: KindText, Aliases: []string{"size", "companysize", "staff_range", "employees_range"}},
	{Field: FieldHeadquarters, Kind: KindText, Aliases: []string{"hq", "location", "headquarter", "based_in"}},
	{Field: FieldWebsite, Kind: KindURL, Aliases: []string{"url", "homepage", "site", "web"}},
	{Field: FieldFounded, Kind: KindYear, Aliases: []string{"founded", "foundingdate", "year_founded", "established", "foundedon"}},
	{Field: FieldSpecialties, Kind: KindList, Aliases: []string{"specialities", "knowsabout", "expertise", "services"}},
	{Field: FieldEmployees, Kind: KindCount, Aliases: []string{"employees", "numberofemployees", "headcount", "staff"}},
	{Field: FieldFollowers, Kind: KindCount, Aliases: []string{"follower_count", "followers_count", "audience"}},
	{Field: FieldEmail, Kind: KindEmail, Aliases: []string{"e-mail", "contact_email", "mail"}, Contact: true},
	{Field: FieldPhone, Kind: KindPhone, Aliases: []string{"telephone", "tel", "phone_number", "contact_phone"}, Contact: true},
	{Field: FieldAddress, Kind: KindText, Aliases: []string{"streetaddress", "postal_address", "street"}, Contact: true},
	{Field: FieldLogo, Kind: KindURL, Aliases: []string{"image", "og:image", "logo_url"}},
	{Field: FieldProfileURL, Kind: KindURL, Aliases: []string{"profile", "canonical_profile"}},
	{Field: FieldProducts, Kind: KindList, Aliases: []string{"product", "offerings", "brands"}},
}

var (
	specByField = make(map[Field]FieldSpec, len(fieldSpecs))
	fieldByKey  = make(map[string]Field)
)

func init() {
	for _, s := range fieldSpecs {
		specByField[s.Field] = s
		fieldByKey[normalizeKey(string(s.Field))] = s.Field
		for _, a := range s.Aliases {
			fieldByKey[normalizeKey(a)] = s.Field
		}
	}
}

// Fields returns the field table in declaration order.
func Fields() []FieldSpec {
	out := make([]FieldSpec, len(fieldSpecs))
	copy(out, fieldSpecs)
	return out
}

// SpecFor returns the table entry for f.
func SpecFor(f Field) (FieldSpec, bool) {
	s, ok := specByField[f]
	return s, ok
}

// LookupField resolves a raw key (canonical name or alias, any case) to a Field.
func LookupField(key string) (Field, bool) {
	f, ok := fieldByKey[normalizeKey(key)]
	return f, ok
}

// ContactFields returns the fields targeted by the contact-page pass.
func ContactFields() []Field {
	var out []Field
	for _, s := range fieldSpecs {
		if s.Contact {
			out = append(out, s.Field)
		}
	}
	return out
}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	k = strings.ReplaceAll(k, " ", "_")
	return strings.ReplaceAll(k, "-", "_")
}
