package pipeline

import (
	"fmt"
	"strings"

	"sourcesage/internal/domain/entity"
	"sourcesage/internal/utils/text"
)

// Input bounds, in runes.
const (
	planContextLimit   = 1500
	promptContextLimit = 1500
	promptPlanLimit    = 1000
	reportContextLimit = 1000
	reportPlanLimit    = 800
	skeletonLimit      = 400
	reportTitleLimit   = 60

	contextComments = 3
)

// PlanUnavailable is written when no provider produced a plan.
const PlanUnavailable = "Unable to generate plan. AI service temporarily unavailable."

const titlePrefix = "**Issue Title:** "

// compileContext renders the context text for one issue. Comments arrive
// oldest first; the newest contextComments are kept.
func compileContext(d entity.IssueDetail) string {
	comments := d.Comments
	if len(comments) > contextComments {
		comments = comments[len(comments)-contextComments:]
	}
	s := fmt.Sprintf("%s%s\n\n**Description:**\n%s\n\n**Recent Comments:**\n%s",
		titlePrefix, d.Title, d.Body, strings.Join(comments, "\n"))
	return strings.TrimSpace(s)
}

func planPrompt(context string) string {
	return `You are an expert software engineer analyzing a GitHub issue.

Analyze this issue and provide a detailed, step-by-step solution plan:

` + text.Truncate(context, planContextLimit) + `

Provide a numbered action plan (6-10 steps) with:
- Specific files to modify
- Technical implementation details
- Code structure recommendations
- Testing approach

Be thorough and technically precise:`
}

func metaPrompt(context, plan string) string {
	return `You are an expert prompt engineer for software development.

Create a single, comprehensive prompt for a code-generation AI (like Code Llama or GitHub Copilot). This prompt should allow the AI to write the complete implementation code.

Include:
1. Full technical context
2. The step-by-step plan
3. Clear instructions on what to generate

**Issue Context:**
` + text.Truncate(context, promptContextLimit) + `

**Solution Plan:**
` + text.Truncate(plan, promptPlanLimit) + `

Generate the optimized prompt now.`
}

// fallbackPrompt is the deterministic prompt used when no provider answered.
func fallbackPrompt(context, plan string) string {
	return `You are an expert software engineer. Write the complete implementation for the GitHub issue below.

**Issue Context:**
` + text.Truncate(context, promptContextLimit) + `

**Solution Plan:**
` + text.Truncate(plan, promptPlanLimit) + `

Follow the plan step by step. Produce every file that must change, in full, and include tests that cover the new behavior.`
}

func reportPrompt(context, plan string) string {
	return `Write a formal, professional Google Summer of Code (GSOC) project proposal.

**Issue Context:**
` + text.Truncate(context, reportContextLimit) + `

**Technical Plan:**
` + text.Truncate(plan, reportPlanLimit) + `

Write a complete, well-structured proposal with:

1. **Project Title** (creative and descriptive)
2. **Abstract** (2-3 sentences)
3. **Problem Statement** (what needs fixing)
4. **Proposed Solution** (detailed technical approach)
5. **Implementation Plan** (12-week timeline with milestones)
6. **Deliverables** (concrete outputs)
7. **Benefits** (project impact)
8. **About Me** (placeholder for contributor background)

Use professional, formal tone. Be thorough and persuasive:`
}

// reportSkeleton is the fixed proposal structure used when no provider answered.
func reportSkeleton(context, plan string) string {
	context = text.Truncate(text.Truncate(context, reportContextLimit), skeletonLimit)
	plan = text.Truncate(text.Truncate(plan, reportPlanLimit), skeletonLimit)
	return `# Google Summer of Code Project Proposal

## Abstract
This proposal addresses a critical feature request in the project.

## Problem Statement
` + context + `

## Proposed Technical Approach
` + plan + `

## Implementation Timeline
**Weeks 1-4:** Foundation and setup
**Weeks 5-8:** Core implementation
**Weeks 9-11:** Testing and refinement
**Week 12:** Documentation and review

## Deliverables
- Fully functional implementation
- Comprehensive test suite
- Complete documentation

## Benefits
This contribution will significantly enhance the project's functionality and user experience.`
}

// reportTitle extracts the issue title from a compiled context.
func reportTitle(context string) string {
	return text.Truncate(strings.TrimPrefix(text.FirstLine(context), titlePrefix), reportTitleLimit)
}
