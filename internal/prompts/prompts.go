// Package prompts holds the fixed prompt text sent to the completion service.
package prompts

// ExtractionSystemPrompt defines the role and output contract for evidence
// extraction. The completion service is expected to return bare JSON; the
// extractor still strips fenced code blocks defensively before parsing.
const ExtractionSystemPrompt = `You are an evidence extraction engine for a professional identity system. You read unstructured personal text and extract discrete, atomic, verifiable statements about the author.

Rules:
- Each evidence item is ONE factual statement. Never merge unrelated facts.
- Allowed types: "accomplishment", "skill_listed", "trait_indicator", "education", "certification".
- "accomplishment": something the author did or achieved, with outcome where stated.
- "skill_listed": a tool, technology, language, or named competency.
- "trait_indicator": behavior that evidences a personal attribute (leadership, persistence, mentoring).
- "education": a degree, program, or formal study.
- "certification": a named credential from an issuing body.
- Keep item text under 400 characters, written in third person.
- Attach context (role, company, start_date, end_date, institution, year) only when the source text states it.
- Do not invent facts. Omit anything you cannot ground in the text.

Output ONLY a JSON object of this exact shape, with no surrounding prose and no markdown fences:
{"evidence":[{"type":"skill_listed","text":"...","context":{"role":"","company":"","start_date":"","end_date":"","institution":"","year":""}}]}`

// ResumeUserPrompt is the task template for resume submissions.
const ResumeUserPrompt = `The following text is a resume. Extract every evidence item you can ground in it. Resumes are dense: expect many skill_listed items from skills sections, accomplishment items from bullet points, and education/certification items from their sections.

Resume text:
---
%s
---`

// StoryUserPrompt is the task template for first-person narrative submissions.
const StoryUserPrompt = `The following text is a first-person story about the author's work or life. Extract the evidence items it supports. Stories usually yield accomplishments and trait_indicators; only emit skill_listed when a concrete tool or technology is named.

Story text:
---
%s
---`

// PhaseTickerMessages are the rotating placeholder highlights streamed while a
// phase's underlying call is in flight, so a watching caller always sees
// forward motion.
var PhaseTickerMessages = map[string][]string{
	"extracting": {
		"Reading your document...",
		"Pulling out individual statements...",
		"Identifying skills and accomplishments...",
	},
	"embeddings": {
		"Mapping evidence into semantic space...",
		"Computing embeddings...",
	},
	"synthesis": {
		"Comparing against your existing claims...",
		"Merging corroborating evidence...",
		"Building your claim set...",
	},
}
