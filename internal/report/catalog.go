package report

import "strings"

// Guidance is the remediation advice for one crack type.
type Guidance struct {
	Severity   string   `json:"severity"`
	Urgency    string   `json:"urgency"`
	Causes     []string `json:"causes"`
	Solutions  []string `json:"solutions"`
	Prevention []string `json:"prevention"`
}

const (
	keyHorizontal    = "horizontal crack"
	keyVertical      = "vertical crack"
	keyUnprecedented = "unprecedented crack"
)

var catalog = map[string]Guidance{
	keyHorizontal: {
		Severity: "Medium to High",
		Urgency:  "Address within 3-6 months",
		Causes: []string{
			"Thermal expansion and contraction cycles",
			"Foundation settlement or movement",
			"Excessive load bearing stress",
			"Inadequate structural support",
			"Age-related material deterioration",
		},
		Solutions: []string{
			"Apply flexible polyurethane sealant for minor cracks (width < 2mm)",
			"Use structural epoxy injection for moderate cracks (2-5mm)",
			"Install steel reinforcement plates for major structural cracks",
			"Consider complete section replacement for severe damage",
			"Implement stress distribution measures",
		},
		Prevention: []string{
			"Design proper expansion joints during construction",
			"Ensure adequate foundation design and soil analysis",
			"Regular maintenance and inspection schedules",
			"Control thermal movement with appropriate materials",
			"Monitor structural loads and weight distribution",
		},
	},
	keyVertical: {
		Severity: "High",
		Urgency:  "Address within 1-3 months",
		Causes: []string{
			"Structural loading and stress concentration",
			"Material shrinkage during curing",
			"Seismic activity and ground movement",
			"Improper construction techniques",
			"Water infiltration and freeze-thaw cycles",
		},
		Solutions: []string{
			"Inject structural epoxy resin for load-bearing cracks",
			"Apply surface sealers for cosmetic vertical cracks",
			"Install carbon fiber reinforcement strips",
			"Use steel plate bonding for critical structural areas",
			"Implement waterproofing measures",
		},
		Prevention: []string{
			"Proper structural design with adequate reinforcement",
			"Quality control during concrete mixing and placement",
			"Regular structural health monitoring",
			"Seismic design considerations in earthquake-prone areas",
			"Proper drainage and waterproofing systems",
		},
	},
	keyUnprecedented: {
		Severity: "Critical",
		Urgency:  "Immediate attention required",
		Causes: []string{
			"Complex multi-directional stress patterns",
			"Multiple simultaneous failure modes",
			"Unusual environmental conditions",
			"Design or construction defects",
			"Unexpected loading conditions",
		},
		Solutions: []string{
			"Conduct detailed structural analysis by qualified engineer",
			"Implement temporary support measures immediately",
			"Develop custom repair solution based on analysis",
			"Install continuous monitoring systems",
			"Consider professional structural assessment",
		},
		Prevention: []string{
			"Advanced structural modeling and analysis",
			"Regular professional inspections by structural engineers",
			"Environmental protection and monitoring measures",
			"Implementation of structural health monitoring systems",
			"Adherence to latest building codes and standards",
		},
	},
}

// Key maps a classifier label onto a catalogue key. Unrecognised labels are
// treated as unprecedented, the most severe entry.
func Key(label string) string {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "horizontal"):
		return keyHorizontal
	case strings.Contains(l, "vertical"):
		return keyVertical
	default:
		return keyUnprecedented
	}
}

func GuidanceFor(label string) Guidance {
	return catalog[Key(label)]
}

// Preview is the catalogue entry as served to clients before they request a
// full report.
type Preview struct {
	CrackType string `json:"crack_type"`
	Guidance
}

func NewPreview(label string) Preview {
	return Preview{CrackType: label, Guidance: GuidanceFor(label)}
}

// headline formats "<label> Detected", adding "Crack" when the label lacks it.
func headline(label string) string {
	if strings.Contains(strings.ToLower(label), "crack") {
		return label + " Detected"
	}
	return label + " Crack Detected"
}
