// Package model defines the ModelProvider abstraction that the evaluator
// and analyzer use to answer type-system questions (subtype checks,
// element lookup, choice-type resolution) without hard-coding FHIR's
// type hierarchy into the evaluation core. StaticProvider, the default
// implementation, lifts the teacher's inline FHIR-type tables out of
// eval/evaluator.go so a different FHIR version or a custom profile can
// be plugged in later by implementing the same interface.
package model

import (
	"context"
	"sort"
	"strings"
)

// ModelProvider answers questions about the FHIR type system: what a
// value's runtime type is related to, whether a property is a
// polymorphic (value[x]) choice, and how to resolve its concrete
// variant name.
type ModelProvider interface {
	// IsSubtypeOf reports whether actualType is actualType itself or a
	// descendant of baseType in the FHIR type hierarchy.
	IsSubtypeOf(ctx context.Context, actualType, baseType string) bool

	// TypeMatches reports whether actualType satisfies a type name as
	// used in `is`/`as`/ofType(), including FHIR-primitive aliasing and
	// the System./FHIR. namespace prefixes.
	TypeMatches(ctx context.Context, actualType, typeName string) bool

	// IsChoiceProperty reports whether name is the base name of a FHIR
	// polymorphic element (e.g. "value" for value[x]).
	IsChoiceProperty(ctx context.Context, name string) bool

	// ChoiceVariants returns the ordered list of concrete field names a
	// choice property base name can resolve to (e.g. "value" ->
	// ["valueBoolean", "valueInteger", ...]).
	ChoiceVariants(ctx context.Context, name string) []string

	// TypeOf normalizes a root type name (e.g. a FHIR primitive alias)
	// to its canonical FHIRPath/FHIR type name. Unknown names are
	// returned unchanged.
	TypeOf(ctx context.Context, name string) string

	// Element reports the declared element of typeName named
	// fieldName, if known. ok is false when the field is not part of
	// this provider's schema knowledge for typeName (which may mean it
	// genuinely doesn't exist, or simply that this type isn't covered
	// by the provider's tables).
	Element(ctx context.Context, typeName, fieldName string) (Element, bool)

	// ElementNames lists the field names this provider knows about for
	// typeName, for use in "did you mean" suggestions. Returns nil when
	// typeName isn't covered by the provider's tables.
	ElementNames(ctx context.Context, typeName string) []string
}

// Confidence reflects how sure a ModelProvider is about an Element's
// reported type, matching spec's "High/Medium/Low" static-analysis
// confidence levels.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// Element is the static description of one field of a FHIR type:
// its declared type, cardinality (FHIR's "min..max" notation), and how
// confident the provider is in that information.
type Element struct {
	Type        string
	Cardinality string
	Confidence  Confidence
}

// StaticProvider is an in-memory ModelProvider built from fixed tables
// describing FHIR R4's resource hierarchy and value[x] suffixes. It
// requires no external terminology service and is the default used when
// no ModelProvider option is supplied.
type StaticProvider struct{}

// NewStaticProvider returns the default, dependency-free ModelProvider.
func NewStaticProvider() *StaticProvider { return &StaticProvider{} }

// nonDomainResources inherit directly from Resource, not DomainResource.
var nonDomainResources = map[string]bool{
	"Bundle":     true,
	"Binary":     true,
	"Parameters": true,
}

var primitiveTypes = map[string]bool{
	"Boolean": true, "String": true, "Integer": true, "Decimal": true,
	"Date": true, "DateTime": true, "Time": true, "Quantity": true,
	"Object": true,
}

// fhirToFHIRPath maps lowercase FHIR primitive/complex type names to
// their FHIRPath system-type (or Quantity) equivalent.
var fhirToFHIRPath = map[string]string{
	"boolean": "Boolean", "string": "String", "integer": "Integer",
	"decimal": "Decimal", "date": "Date", "datetime": "DateTime",
	"time": "Time", "instant": "DateTime", "uri": "String", "url": "String",
	"canonical": "String", "base64binary": "String", "code": "String",
	"id": "String", "markdown": "String", "oid": "String", "uuid": "String",
	"positiveint": "Integer", "unsignedint": "Integer", "integer64": "Integer",
	"quantity": "Quantity", "simplequantity": "Quantity", "age": "Quantity",
	"count": "Quantity", "distance": "Quantity", "duration": "Quantity",
	"money": "Quantity",
}

// choiceTypeSuffixes enumerates the FHIR type suffixes that can appear on
// a polymorphic (value[x]) element name.
var choiceTypeSuffixes = []string{
	"Boolean", "Integer", "Integer64", "Decimal", "String", "Code", "Id", "Uri", "Url", "Canonical",
	"Base64Binary", "Instant", "Date", "DateTime", "Time", "Oid", "Uuid", "Markdown", "PositiveInt", "UnsignedInt",
	"Quantity", "CodeableConcept", "Coding", "Range", "Period", "Ratio", "RatioRange",
	"Identifier", "Reference", "Attachment", "HumanName", "Address", "ContactPoint",
	"Timing", "Signature", "Annotation", "SampledData", "Age", "Distance", "Duration",
	"Count", "Money", "MoneyQuantity", "SimpleQuantity",
	"Meta", "Dosage", "ContactDetail", "Contributor", "DataRequirement", "Expression",
	"ParameterDefinition", "RelatedArtifact", "TriggerDefinition", "UsageContext",
}

// choicePropertyNames are the base names FHIR R4 defines as polymorphic
// elements. IsChoiceProperty consults this table first, falling back to
// "any name not otherwise recognized as a direct field may be a choice
// base" behavior is left to the caller (navigateMember tries direct
// field access before asking here).
var choicePropertyNames = map[string]bool{
	"value": true, "effective": true, "onset": true, "abatement": true,
	"deceased": true, "multipleBirth": true, "performed": true, "occurrence": true,
	"medication": true, "asNeeded": true, "reason": true, "serviced": true,
	"diagnosis": true, "product": true, "timing": true, "collected": true,
	"fixed": true, "pattern": true, "minValue": true, "maxValue": true,
	"bodySite": true, "scheduled": true,
}

// domainResourceElements are the elements every DomainResource carries,
// per the FHIR base spec, used as a fallback field table for any
// resource-looking type not covered by resourceElements.
var domainResourceElements = map[string]Element{
	"id":                {Type: "String", Cardinality: "0..1", Confidence: ConfidenceHigh},
	"meta":              {Type: "Meta", Cardinality: "0..1", Confidence: ConfidenceHigh},
	"implicitRules":     {Type: "String", Cardinality: "0..1", Confidence: ConfidenceHigh},
	"language":          {Type: "String", Cardinality: "0..1", Confidence: ConfidenceHigh},
	"text":              {Type: "Narrative", Cardinality: "0..1", Confidence: ConfidenceHigh},
	"contained":         {Type: "Resource", Cardinality: "0..*", Confidence: ConfidenceHigh},
	"extension":         {Type: "Extension", Cardinality: "0..*", Confidence: ConfidenceHigh},
	"modifierExtension": {Type: "Extension", Cardinality: "0..*", Confidence: ConfidenceHigh},
}

// resourceElements holds per-resource-type field tables for the handful
// of resource types this module's test fixtures and examples exercise.
// It is deliberately small: StaticProvider is a schema-light, in-memory
// ModelProvider, not a full generated StructureDefinition index (that's
// the out-of-scope pkg/fhir/* generation the teacher also carried).
// Types not listed here still get the common DomainResource fields.
var resourceElements = map[string]map[string]Element{
	"Patient": {
		"active":    {Type: "Boolean", Cardinality: "0..1", Confidence: ConfidenceHigh},
		"name":      {Type: "HumanName", Cardinality: "0..*", Confidence: ConfidenceHigh},
		"telecom":   {Type: "ContactPoint", Cardinality: "0..*", Confidence: ConfidenceHigh},
		"gender":    {Type: "String", Cardinality: "0..1", Confidence: ConfidenceHigh},
		"birthDate": {Type: "Date", Cardinality: "0..1", Confidence: ConfidenceHigh},
		"address":   {Type: "Address", Cardinality: "0..*", Confidence: ConfidenceHigh},
		"identifier": {Type: "Identifier", Cardinality: "0..*", Confidence: ConfidenceHigh},
		"contact":   {Type: "BackboneElement", Cardinality: "0..*", Confidence: ConfidenceHigh},
	},
	"Observation": {
		"status":     {Type: "String", Cardinality: "1..1", Confidence: ConfidenceHigh},
		"code":       {Type: "CodeableConcept", Cardinality: "1..1", Confidence: ConfidenceHigh},
		"subject":    {Type: "Reference", Cardinality: "0..1", Confidence: ConfidenceHigh},
		"category":   {Type: "CodeableConcept", Cardinality: "0..*", Confidence: ConfidenceHigh},
		"identifier": {Type: "Identifier", Cardinality: "0..*", Confidence: ConfidenceHigh},
		"component":  {Type: "BackboneElement", Cardinality: "0..*", Confidence: ConfidenceHigh},
	},
	"Bundle": {
		"type":      {Type: "String", Cardinality: "1..1", Confidence: ConfidenceHigh},
		"entry":     {Type: "BackboneElement", Cardinality: "0..*", Confidence: ConfidenceHigh},
		"total":     {Type: "Integer", Cardinality: "0..1", Confidence: ConfidenceHigh},
		"timestamp": {Type: "DateTime", Cardinality: "0..1", Confidence: ConfidenceHigh},
	},
}

func isPossibleResourceType(typeName string) bool {
	if typeName == "" || primitiveTypes[typeName] {
		return false
	}
	return typeName[0] >= 'A' && typeName[0] <= 'Z'
}

func isDomainResource(resourceType string) bool { return !nonDomainResources[resourceType] }

// IsSubtypeOf implements ModelProvider.
func (StaticProvider) IsSubtypeOf(_ context.Context, actualType, baseType string) bool {
	if actualType == baseType || strings.EqualFold(actualType, baseType) {
		return true
	}
	if strings.EqualFold(baseType, "resource") {
		return isPossibleResourceType(actualType)
	}
	if strings.EqualFold(baseType, "domainresource") {
		return isPossibleResourceType(actualType) && isDomainResource(actualType)
	}
	return false
}

// TypeMatches implements ModelProvider.
func (p StaticProvider) TypeMatches(ctx context.Context, actualType, typeName string) bool {
	if actualType == typeName {
		return true
	}
	actualLower := strings.ToLower(actualType)
	typeNameLower := strings.ToLower(typeName)
	if actualLower == typeNameLower {
		return true
	}
	if p.IsSubtypeOf(ctx, actualType, typeName) {
		return true
	}
	if fhirPathType, ok := fhirToFHIRPath[typeNameLower]; ok && actualType == fhirPathType {
		return true
	}
	if fhirPathType, ok := fhirToFHIRPath[actualLower]; ok && strings.EqualFold(fhirPathType, typeName) {
		return true
	}
	if rest, ok := cutPrefixFold(typeName, "System."); ok {
		return strings.EqualFold(actualType, rest)
	}
	if rest, ok := cutPrefixFold(typeName, "FHIR."); ok {
		return strings.EqualFold(actualType, rest)
	}
	return false
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return s[len(prefix):], true
}

// IsChoiceProperty implements ModelProvider.
func (StaticProvider) IsChoiceProperty(_ context.Context, name string) bool {
	return choicePropertyNames[name]
}

// ChoiceVariants implements ModelProvider.
func (StaticProvider) ChoiceVariants(_ context.Context, name string) []string {
	variants := make([]string, len(choiceTypeSuffixes))
	for i, suffix := range choiceTypeSuffixes {
		variants[i] = name + suffix
	}
	return variants
}

// TypeOf implements ModelProvider.
func (StaticProvider) TypeOf(_ context.Context, name string) string {
	if fhirPathType, ok := fhirToFHIRPath[strings.ToLower(name)]; ok {
		return fhirPathType
	}
	return name
}

// Element implements ModelProvider.
func (StaticProvider) Element(_ context.Context, typeName, fieldName string) (Element, bool) {
	if fields, ok := resourceElements[typeName]; ok {
		if el, ok := fields[fieldName]; ok {
			return el, true
		}
	}
	if isPossibleResourceType(typeName) {
		if el, ok := domainResourceElements[fieldName]; ok {
			return el, true
		}
	}
	return Element{}, false
}

// ElementNames implements ModelProvider.
func (StaticProvider) ElementNames(_ context.Context, typeName string) []string {
	fields, known := resourceElements[typeName]
	if !known && !isPossibleResourceType(typeName) {
		return nil
	}
	names := make([]string, 0, len(fields)+len(domainResourceElements))
	for name := range fields {
		names = append(names, name)
	}
	for name := range domainResourceElements {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
