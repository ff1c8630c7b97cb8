package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"sourcesage/internal/domain/entity"
	"sourcesage/internal/pipeline"
)

// feedback steers a pipeline run from flags, falling back to prompts on
// the command's input when a decision was not given as a flag.
type feedback struct {
	in  *bufio.Reader
	out io.Writer

	pick   []int // 1-based indices into the discovered items
	report bool
	more   int // discovery restarts still to request
	routed bool
}

var _ pipeline.Feedback = (*feedback)(nil)

func (f *feedback) Select(_ context.Context, st *pipeline.State) ([]string, error) {
	if len(st.Items) == 0 {
		return nil, errors.New("no issues found for the given skills")
	}
	printIssues(f.out, st.Items)

	picks := f.pick
	if len(picks) == 0 {
		line, err := f.ask(fmt.Sprintf("Select up to %d issues (e.g. 1,3) [1]: ", entity.MaxIssueURLs))
		if err != nil {
			return nil, err
		}
		if line == "" {
			line = "1"
		}
		if picks, err = parsePicks(line); err != nil {
			return nil, err
		}
	}

	urls := make([]string, 0, len(picks))
	for _, p := range picks {
		if p < 1 || p > len(st.Items) {
			return nil, &entity.ValidationError{Field: "pick", Message: fmt.Sprintf("%d is not between 1 and %d", p, len(st.Items))}
		}
		urls = append(urls, st.Items[p-1].URL)
	}
	if err := entity.ValidateIssueURLs(urls); err != nil {
		return nil, err
	}
	return urls, nil
}

func (f *feedback) Route(_ context.Context, _ *pipeline.State) (pipeline.Routing, error) {
	if f.more > 0 {
		f.more--
		return pipeline.RoutingRestartDiscovery, nil
	}
	if f.report {
		return pipeline.RoutingContinueToReport, nil
	}
	if f.routed {
		return pipeline.RoutingStop, nil
	}

	line, err := f.ask("Next: [r]eport, [m]ore issues, [e]nd [e]: ")
	if err != nil {
		return pipeline.RoutingStop, err
	}
	switch strings.ToLower(line) {
	case "r", "report", "draft_report":
		return pipeline.RoutingContinueToReport, nil
	case "m", "more", "find_more":
		return pipeline.RoutingRestartDiscovery, nil
	default:
		return pipeline.RoutingStop, nil
	}
}

// ask prints prompt and reads one line. EOF yields an empty answer.
func (f *feedback) ask(prompt string) (string, error) {
	fmt.Fprint(f.out, prompt)
	line, err := f.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func parsePicks(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, &entity.ValidationError{Field: "pick", Message: fmt.Sprintf("%q is not a number", part)}
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, &entity.ValidationError{Field: "pick", Message: "no issues selected"}
	}
	return out, nil
}
