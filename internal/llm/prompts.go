package llm

import "strings"

// ExampleCitation is the citation placeholder shown to the model in the
// QA prompt. Models occasionally echo it verbatim, so synthesis strips
// it from answers.
const ExampleCitation = "(Example2012Example pages 3-4)"

// SystemPrompt frames every scoring and QA call.
const SystemPrompt = "Answer in a direct and concise tone. " +
	"Your audience is an expert, so be highly specific. " +
	"If there are ambiguous terms or acronyms, first define them."

const summaryTemplate = "Summarize the excerpt below to help answer a question.\n\n" +
	"Excerpt from {citation}\n\n----\n\n{text}\n\n----\n\n" +
	"Question: {question}\n\n" +
	"Do not directly answer the question, instead summarize to give evidence to help answer the question. " +
	"Stay detailed; report specific numbers, equations, or direct quotes (marked with quotation marks). " +
	"Reply \"Not applicable\" if the excerpt is irrelevant. " +
	"Keep your summary to {summary_length}. " +
	"At the end of your response, provide an integer score from 1-10 on a newline indicating relevance to question. " +
	"Do not explain your score."

const qaTemplate = "Answer the question below with the context.\n\n" +
	"Context (with relevance scores):\n\n{context}\n\n----\n\n" +
	"Question: {question}\n\n" +
	"Write an answer based on the context. " +
	"If the context provides insufficient information reply \"I cannot answer.\" " +
	"For each part of your answer, indicate which sources most support it via citation keys at the end of sentences, " +
	"like {example_citation}. Only cite from the context below and only use the valid keys. " +
	"Write in the style of a Wikipedia article, with concise sentences and coherent paragraphs. " +
	"The context comes from a variety of sources and is only a summary, so there may be inaccuracies or ambiguities. " +
	"If quotes are present and relevant, use them in the answer.\n\n" +
	"Answer ({answer_length}):"

const citationTemplate = "Provide the citation for the following text in MLA Format. " +
	"Do not write an introductory sentence.\n\n{text}\n\nCitation:"

// SummaryPrompt renders the evidence scoring prompt for one chunk.
func SummaryPrompt(question, citation, text, summaryLength string) string {
	return render(summaryTemplate, map[string]string{
		"question":       question,
		"citation":       citation,
		"text":           text,
		"summary_length": summaryLength,
	})
}

// QAPrompt renders the answer synthesis prompt.
func QAPrompt(question, contextBlock, answerLength string) string {
	return render(qaTemplate, map[string]string{
		"question":         question,
		"context":          contextBlock,
		"answer_length":    answerLength,
		"example_citation": ExampleCitation,
	})
}

// CitationPrompt renders the citation bootstrap prompt from a document's
// leading text.
func CitationPrompt(text string) string {
	return render(citationTemplate, map[string]string{"text": text})
}

// Render fills a caller-supplied prompt template. Placeholders use the
// same {name} form as the built-in templates; unknown placeholders are
// left in place. Used for the optional pre and post synthesis prompts.
func Render(template string, vars map[string]string) string {
	return render(template, vars)
}

func render(template string, vars map[string]string) string {
	pairs := make([]string, 0, 2*len(vars))
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
