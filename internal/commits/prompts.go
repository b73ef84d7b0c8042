package commits

import (
	"fmt"
	"strings"

	"github.com/commitforge/commitforge-backend/pkg/enums"
	"github.com/commitforge/commitforge-backend/pkg/openai"
)

// diffPreviewLimit caps how much of the submitted diff is stored with a
// history row.
const diffPreviewLimit = 500

var stylePrompts = map[enums.CommitStyle]string{
	enums.CommitStyleConventional: "You are an expert software engineer writing git commit messages. " +
		"Produce a single commit message following the Conventional Commits specification: " +
		"a type prefix (feat, fix, docs, style, refactor, perf, test, chore), an optional scope in parentheses, " +
		"a colon, and an imperative-mood summary under 72 characters. Add a body only when the change needs explanation. " +
		"Respond with the commit message only, no markdown fences.",
	enums.CommitStyleDescriptive: "You are an expert software engineer writing git commit messages. " +
		"Produce a single descriptive commit message: an imperative-mood summary line under 72 characters, " +
		"a blank line, then a short body explaining what changed and why. " +
		"Respond with the commit message only, no markdown fences.",
	enums.CommitStyleEmoji: "You are an expert software engineer writing git commit messages. " +
		"Produce a single gitmoji-style commit message: start with the most fitting emoji " +
		"(such as ✨ for features, \U0001F41B for fixes, \U0001F4DD for docs), followed by an imperative-mood summary under 72 characters. " +
		"Respond with the commit message only, no markdown fences.",
	enums.CommitStyleSemantic: "You are an expert software engineer writing git commit messages. " +
		"Produce a single semantic commit message of the form type(scope): summary, " +
		"choosing the scope from the files touched in the diff. Keep the summary imperative and under 72 characters. " +
		"Respond with the commit message only, no markdown fences.",
	enums.CommitStyleTicket: "You are an expert software engineer writing git commit messages. " +
		"Produce a single commit message that leads with a ticket reference placeholder in square brackets " +
		"(use [TICKET-ID] when no ticket is present in the diff or instructions), followed by an imperative-mood summary under 72 characters. " +
		"Respond with the commit message only, no markdown fences.",
}

// systemPrompt returns the generation instructions for a style.
func systemPrompt(style enums.CommitStyle) string {
	if prompt, ok := stylePrompts[style]; ok {
		return prompt
	}
	return stylePrompts[enums.CommitStyleConventional]
}

func buildMessages(style enums.CommitStyle, diff, customInstructions string) []openai.Message {
	var user strings.Builder
	fmt.Fprintf(&user, "Generate a commit message for the following diff:\n\n%s", diff)
	if trimmed := strings.TrimSpace(customInstructions); trimmed != "" {
		fmt.Fprintf(&user, "\n\nAdditional instructions: %s", trimmed)
	}
	return []openai.Message{
		{Role: "system", Content: systemPrompt(style)},
		{Role: "user", Content: user.String()},
	}
}

func truncateDiff(diff string) string {
	if len(diff) <= diffPreviewLimit {
		return diff
	}
	// cut on a rune boundary so previews stay valid UTF-8
	cut := diffPreviewLimit
	for cut > 0 && !isRuneStart(diff[cut]) {
		cut--
	}
	return diff[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
