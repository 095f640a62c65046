package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/docket/core"
)

const extractionResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {
            "type": "string"
          },
          "type": {
            "type": "string"
          }
        },
        "required": ["name", "type"],
        "additionalProperties": false
      }
    },
    "relations": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "source": {
            "type": "string"
          },
          "target": {
            "type": "string"
          },
          "type": {
            "type": "string"
          }
        },
        "required": ["source", "target", "type"],
        "additionalProperties": false
      }
    }
  },
  "required": ["entities", "relations"],
  "additionalProperties": false
}`

const extractionPromptTemplate = `You analyze passages from legal documents. Extract the legal entities the passage mentions and the relationships between them, and return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Entity names must be lowercase with single spaces between words.
- Entity type must match exactly one of: %s.
- Relation type must match exactly one of: %s.
- Relation source and target must repeat the name of an entity listed in "entities".
- Include only entities explicitly mentioned in the passage. Do not hallucinate.
- Case numbers, statute names and article references are the most valuable entities; always include them when present.
- If no entities can be identified, return "entities": [] and "relations": [].
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "In case 42/2019 the Supreme Court interpreted article 15 of the Data Protection Act."
Output:
{
  "entities": [
    {"name":"case 42/2019","type":"case_number"},
    {"name":"supreme court","type":"organization"},
    {"name":"article 15","type":"article"},
    {"name":"data protection act","type":"statute"}
  ],
  "relations": [
    {"source":"case 42/2019","target":"article 15","type":"interprets"},
    {"source":"article 15","target":"data protection act","type":"references"}
  ]
}

Example (no relationships):
Input: "The hearing took place in Madrid on 3 May 2021."
Output:
{
  "entities": [
    {"name":"madrid","type":"location"},
    {"name":"3 may 2021","type":"date"}
  ],
  "relations": []
}`

const synthesisPromptTemplate = `You answer questions about legal documents using only the numbered passages provided.

Rules:
- Base every statement on the passages. If the passages do not contain the answer, say so plainly.
- Cite passages by their number in square brackets, like [1] or [2][3].
- Do not speculate about facts, parties, or outcomes the passages don't mention.
- Answer in the language of the question.`

// buildExtractionPrompt creates the extraction system prompt with the
// entity and relation vocabularies embedded.
func buildExtractionPrompt() string {
	entityTypes := make([]string, len(core.EntityTypes))
	for i, t := range core.EntityTypes {
		entityTypes[i] = string(t)
	}
	edgeTypes := make([]string, len(core.EdgeTypes))
	for i, t := range core.EdgeTypes {
		edgeTypes[i] = string(t)
	}

	return fmt.Sprintf(extractionPromptTemplate,
		extractionResponseSchema,
		strings.Join(entityTypes, ", "),
		strings.Join(edgeTypes, ", "))
}

// buildSynthesisInput renders the question and ranked passages as the user
// message for the synthesis model.
func buildSynthesisInput(question string, passages []core.Passage) string {
	var sb strings.Builder
	sb.WriteString("Passages:\n")
	for i, p := range passages {
		fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, strings.TrimSpace(p.Text))
	}
	sb.WriteString("Question: ")
	sb.WriteString(strings.TrimSpace(question))
	return sb.String()
}
