package service

import (
	"fmt"
	"strings"

	"offerguard-backend/models"
)

const judgeSystemPrompt = `You are an employment law compliance reviewer. You review employment offer documents against the statutes you are given and report only clear violations. You never give legal advice and you never invent statutes.`

const noLawsNote = "No statutes were retrieved for this document. Be conservative: report a violation only when the document plainly conflicts with a well-established rule of this jurisdiction, and prefer returning an empty array."

// promptOptions bounds the size of a judge prompt
type promptOptions struct {
	maxDocumentChars int
	maxLaws          int
	includeFullText  bool
	maxLawTextChars  int
}

// buildJudgePrompt renders the user prompt for one judge call
func buildJudgePrompt(jurisdiction, documentText string, laws []models.RetrievalResult, opts promptOptions) string {
	if opts.maxLaws > 0 && len(laws) > opts.maxLaws {
		laws = laws[:opts.maxLaws]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "JURISDICTION: %s\n\n", jurisdiction)

	b.WriteString("APPLICABLE STATUTES:\n")
	if len(laws) == 0 {
		b.WriteString(noLawsNote + "\n")
	}
	for i, r := range laws {
		law := r.Law
		fmt.Fprintf(&b, "%d. [%s] %s\n   Summary: %s\n", i+1, law.Topic, law.Citation, law.Summary)
		if opts.includeFullText && law.FullText != "" {
			fmt.Fprintf(&b, "   Text: %s\n", truncateRunes(law.FullText, opts.maxLawTextChars))
		}
	}

	b.WriteString("\nDOCUMENT:\n<<<\n")
	b.WriteString(clauseWindow(documentText, laws, opts.maxDocumentChars))
	b.WriteString("\n>>>\n\n")

	b.WriteString(`TASK:
Identify clauses in the document that violate the statutes above for this jurisdiction.

Respond with a JSON array only. Each element must be an object with exactly these keys:
  "topic":         the statute topic in lowercase-hyphenated form, e.g. "non-compete"
  "severity":      "info", "warning" or "error"
  "confidence":    a number between 0 and 1
  "explanation":   one or two sentences on why the clause violates the statute
  "citation":      the citation of the statute above that is violated, or null
  "evidence_text": the exact quoted clause from the document, or null

Rules:
- Avoid false positives. Omit any topic for which the document contains no evidence.
- Use only citations listed above. Do not cite any other authority.
- Report each topic at most once.
- If nothing is violated, respond with [].
`)
	return b.String()
}

// clauseWindow reduces a long document to the paragraphs that mention the
// topics of the retrieved laws, in document order, then truncates it
func clauseWindow(documentText string, laws []models.RetrievalResult, maxChars int) string {
	if maxChars <= 0 || len([]rune(documentText)) <= maxChars {
		return documentText
	}

	var keywords []string
	for _, r := range laws {
		keywords = append(keywords, LawKeywords(r.Law)...)
	}

	var kept []string
	for _, para := range splitParagraphs(documentText) {
		text := lexicalText(para)
		for _, k := range keywords {
			if containsTerm(text, k) {
				kept = append(kept, para)
				break
			}
		}
	}

	if len(kept) == 0 {
		return truncateRunes(documentText, maxChars)
	}
	return truncateRunes(strings.Join(kept, "\n\n"), maxChars)
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var paras []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}
