// Package prompt builds the instruction text sent to the completion model.
package prompt

import (
	"strings"

	"github.com/spherical-ai/part-extractor/internal/domain"
)

const materialFillingDefinition = "Material filling describes additives added to the base material in order to " +
	"influence the mechanical material characteristics. Most common additives are GF (glass-fiber), " +
	"GB (glass-balls), MF (mineral-fiber) and T (talcum).\n"

// PDFBase is the document extraction instruction every attribute builds on.
const PDFBase = "\nExtract material filling additives:\n" + materialFillingDefinition

// WebBase is PDFBase without its leading task line.
const WebBase = "\n" + materialFillingDefinition

// Format appends an output format section to a base instruction.
func Format(base, outputFormat string) string {
	return strings.TrimSpace(base + "\n\n**Output format:**\n" + outputFormat)
}

var outputFormats = []struct {
	key    string
	format string
}{
	{"Material Filling", "MATERIAL FILLING: [abbreviations/none]"},
	{"Material Name", "MATERIAL NAME: [name]"},
	{"Pull-to-Seat", "PULL-TO-SEAT: [value]"},
	{"Gender", "GENDER: [value]"},
	{"Height [MM]", "HEIGHT: [value] mm"},
	{"Length [MM]", "LENGTH: [value] mm"},
	{"Width [MM]", "WIDTH: [value] mm"},
	{"Number of Cavities", "NUMBER OF CAVITIES: [value]"},
	{"Number of Rows", "NUMBER OF ROWS: [value]"},
	{"Mechanical Coding", "MECHANICAL CODING: [value]"},
	{"Colour", "COLOUR: [value]"},
	{"Colour Coding", "COLOUR CODING: [value]"},
	{"Max. Working Temperature [°C]", "MAX WORKING TEMPERATURE: [value] °C"},
	{"Min. Working Temperature [°C]", "MIN WORKING TEMPERATURE: [value] °C"},
	{"Housing Seal", "HOUSING SEAL: [value]"},
	{"Wire Seal", "WIRE SEAL: [value]"},
	{"Sealing", "SEALING: [value]"},
	{"Sealing Class", "SEALING CLASS: [value]"},
	{"Contact Systems", "CONTACT SYSTEMS: [value]"},
	{"Terminal Position Assurance", "TERMINAL POSITION ASSURANCE: [value]"},
	{"Connector Position Assurance", "CONNECTOR POSITION ASSURANCE: [value]"},
	{"Closed Cavities", "CLOSED CAVITIES: [value]"},
	{"Pre-Assembled", "PRE-ASSEMBLED: [value]"},
	{"Type of Connector", "TYPE OF CONNECTOR: [value]"},
	{"Set/Kit", "SET/KIT: [value]"},
	{"HV Qualified", "HV QUALIFIED: [value]"},
}

var registry = buildRegistry()

func buildRegistry() []domain.AttributeSpec {
	specs := make([]domain.AttributeSpec, 0, len(outputFormats))
	for _, of := range outputFormats {
		specs = append(specs, domain.AttributeSpec{
			Key:             of.key,
			WebInstructions: Format(WebBase, of.format),
			PDFInstructions: Format(PDFBase, of.format),
		})
	}
	return specs
}

// Registry returns the connector attributes in extraction order.
func Registry() []domain.AttributeSpec {
	out := make([]domain.AttributeSpec, len(registry))
	copy(out, registry)
	return out
}

// Lookup returns the attribute spec for key.
func Lookup(key string) (domain.AttributeSpec, bool) {
	for _, spec := range registry {
		if spec.Key == key {
			return spec, true
		}
	}
	return domain.AttributeSpec{}, false
}

// Filter returns the registry entries whose keys appear in keys, in registry
// order. An empty keys list selects the whole registry.
func Filter(keys []string) []domain.AttributeSpec {
	if len(keys) == 0 {
		return Registry()
	}
	wanted := make(map[string]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}
	var out []domain.AttributeSpec
	for _, spec := range registry {
		if wanted[spec.Key] {
			out = append(out, spec)
		}
	}
	return out
}

// Keys returns the registry keys in order.
func Keys() []string {
	keys := make([]string, len(registry))
	for i, spec := range registry {
		keys[i] = spec.Key
	}
	return keys
}
