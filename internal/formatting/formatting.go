package formatting

import (
	"fmt"
	"strings"
	"time"

	"github.com/aonescu/kubespresso/internal/policy"
	"github.com/aonescu/kubespresso/internal/types"
)

func Summarize(decisions []types.Decision) map[string]interface{} {
	summary := map[string]interface{}{
		"total":      len(decisions),
		"acted":      0,
		"ineligible": 0,
		"conflicted": 0,
		"failed":     0,
		"reasons":    make(map[string]int),
	}

	for _, d := range decisions {
		switch d.Outcome {
		case types.Acted, types.Ineligible, types.Conflicted, types.Failed:
			key := string(d.Outcome)
			summary[key] = summary[key].(int) + 1
		}
		if d.Reason != "" {
			reasons := summary["reasons"].(map[string]int)
			reasons[d.Reason]++
		}
	}

	return summary
}

func FormatDecision(d types.Decision) string {
	var output strings.Builder

	output.WriteString("\nRESOURCE\n")
	output.WriteString("────────────────────────\n")
	output.WriteString(fmt.Sprintf("%s: %s/%s\n", d.Kind, d.Namespace, d.Name))
	output.WriteString(fmt.Sprintf("Event: %s (version %s)\n\n", d.EventType, d.Version))

	output.WriteString("OUTCOME\n")
	output.WriteString("────────────────────────\n")
	output.WriteString(fmt.Sprintf("%s: %s\n", d.Outcome, d.Reason))
	if d.Error != "" {
		output.WriteString(fmt.Sprintf("Error: %s\n", d.Error))
	}
	if !d.DecidedAt.IsZero() {
		output.WriteString(fmt.Sprintf("Decided at %s\n", d.DecidedAt.UTC().Format(time.RFC3339)))
	}

	return output.String()
}

// FormatVerdict renders a dry evaluation of res for the explain command.
func FormatVerdict(res types.Resource, v policy.Verdict) string {
	var output strings.Builder

	output.WriteString("\nRESOURCE\n")
	output.WriteString("────────────────────────\n")
	output.WriteString(fmt.Sprintf("%s: %s/%s\n", res.Kind, res.Namespace, res.Name))
	output.WriteString(fmt.Sprintf("Version: %s\n\n", res.Version))

	output.WriteString("VERDICT\n")
	output.WriteString("────────────────────────\n")
	if v.Eligible {
		output.WriteString("✓ eligible\n")
	} else {
		output.WriteString("✗ not eligible\n")
	}
	output.WriteString(fmt.Sprintf("Reason: %s\n\n", v.Reason))

	switch v.Reason {
	case policy.WrongEventType, policy.WrongResourceKind:
		return output.String()
	}

	output.WriteString("TIMING\n")
	output.WriteString("────────────────────────\n")
	output.WriteString(fmt.Sprintf("Expected duration: %ds\n", v.ExpectedDuration))
	switch {
	case v.Reason == policy.BelowMinimumDuration:
	case v.SinceLastAction == policy.NeverActed:
		output.WriteString("Last coffee: never\n")
	default:
		output.WriteString(fmt.Sprintf("Last coffee: %ds ago\n", v.SinceLastAction))
	}

	return output.String()
}
