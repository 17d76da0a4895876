package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/BranchIntl/tubecheck/catalog"
	"github.com/BranchIntl/tubecheck/match"
)

const maxBodyLen = 120

// FormatJob renders a job as an indented attribute listing.
func FormatJob(job *Job) string {
	if job == nil {
		return "job <nil>"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "job %s on %s\n", job.ID, job.Member)
	h := job.ToHash()
	for _, name := range catalog.JobAttributes.Names() {
		v, ok := h[name]
		if !ok || name == catalog.JobID {
			continue
		}
		if name == catalog.JobBody {
			v = formatBody(job.Body)
		}
		fmt.Fprintf(&b, "  %-11s %v\n", name+":", v)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// FormatTube renders merged tube stats. Catalog attributes come first in
// catalog order, anything else follows sorted.
func FormatTube(name string, stats match.Attributes) string {
	if len(stats) == 0 {
		return fmt.Sprintf("tube %q does not exist", name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "tube %s\n", name)

	printed := map[string]bool{}
	for _, key := range catalog.TubeAttributes.Names() {
		if v, ok := stats[key]; ok && key != catalog.TubeName {
			fmt.Fprintf(&b, "  %-22s %v\n", key+":", v)
		}
		printed[key] = true
	}

	var rest []string
	for key := range stats {
		if !printed[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		fmt.Fprintf(&b, "  %-22s %v\n", key+":", stats[key])
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// formatBody quotes a job body, truncating long payloads.
func formatBody(body []byte) string {
	if len(body) > maxBodyLen {
		return strconv.Quote(string(body[:maxBodyLen])) + "..."
	}
	return strconv.Quote(string(body))
}
