package analysis

import (
	"fmt"
	"strings"

	"versescope/internal/services"
)

// DetailLevel selects how much prose the model is asked for.
type DetailLevel string

const (
	DetailBrief         DetailLevel = "brief"
	DetailComprehensive DetailLevel = "comprehensive"
)

// ParseDetailLevel maps user input to a DetailLevel. Empty input selects
// DetailBrief.
func ParseDetailLevel(value string) (DetailLevel, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "brief", "short":
		return DetailBrief, nil
	case "comprehensive", "full", "detailed":
		return DetailComprehensive, nil
	default:
		return "", services.Wrap(services.ErrValidation, "analysis", "parse detail level",
			fmt.Sprintf("unknown detail level %q (want brief or comprehensive)", value), nil)
	}
}

func (d DetailLevel) String() string {
	if d == "" {
		return string(DetailBrief)
	}
	return string(d)
}

type lengthGuidance struct {
	historical  string
	linguistic  string
	explanation string
}

var guidanceByLevel = map[DetailLevel]lengthGuidance{
	DetailBrief: {
		historical:  "A brief paragraph on the cultural and historical background.",
		linguistic:  "Analysis of one or two key original-language words, including pronunciation.",
		explanation: "One sentence explaining the connection.",
	},
	DetailComprehensive: {
		historical:  "Three to four paragraphs covering authorship, audience, setting, and the cultural background the verse assumes.",
		linguistic:  "A thorough study of every significant original-language word, including pronunciation, grammar, and range of meaning.",
		explanation: "Two to three sentences explaining the thematic and theological connection.",
	},
}

const promptTemplate = `ROLE: You are an expert theological scholar specializing in historical-critical analysis, ancient languages, and biblical theology.

TASK: Analyze the bible verse provided below.

OUTPUT FORMAT:
You must return a single valid, parseable JSON object.
Do not include markdown formatting (no code fences such as ` + "```json" + `).
Do not include any introductory or concluding text.

The JSON object must strictly follow this structure, with exactly these three keys:
{
  "historicalContext": "%[1]s",
  "linguisticLens": "%[2]s",
  "crossReferences": [
    {
      "verse": "Book Chapter:Verse",
      "explanation": "%[3]s"
    },
    {
      "verse": "Book Chapter:Verse",
      "explanation": "%[3]s"
    }
  ]
}
historicalContext and linguisticLens are strings. crossReferences is an array of exactly two objects, each with a "verse" string and an "explanation" string.

LINGUISTIC GUIDELINES (STRICT):
  - FORMAT: "Transliteration (Script) [pronunciation]", optionally followed by a short gloss.
  - EXAMPLE: "Elohim (אֱלֹהִים) [el-o-heem]" or "agape (ἀγάπη) [ah-gah-pay] - self-giving love".
  - Do NOT include labels like "[Hebrew]", "[Greek]" or "[Transliteration]" inside the JSON values.

VERSE TO ANALYZE:
%[4]s: "%[5]s"
`

// BuildPrompt renders the analysis instruction for a verse. The output is a
// pure function of its inputs; reference and text are embedded verbatim.
// Unknown levels fall back to DetailBrief.
func BuildPrompt(reference, text string, level DetailLevel) string {
	guidance, ok := guidanceByLevel[level]
	if !ok {
		guidance = guidanceByLevel[DetailBrief]
	}
	return fmt.Sprintf(promptTemplate,
		guidance.historical,
		guidance.linguistic,
		guidance.explanation,
		reference,
		text,
	)
}
