// Package prompts embeds the templates sent to the generation model.
package prompts

import _ "embed"

//go:embed questions/system.md
var QuestionsSystemPrompt string

//go:embed questions/generate.md.tmpl
var QuestionsTemplate string

//go:embed chapter/system.md
var ChapterSystemPrompt string

//go:embed chapter/generate.md.tmpl
var ChapterTemplate string
