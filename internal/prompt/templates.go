package prompt

import (
	"fmt"
	"strings"

	"github.com/spherical-ai/part-extractor/internal/domain"
)

const webTemplate = `
You are an expert data extractor. Your goal is to answer a specific piece of information by applying the logic described in the 'Extraction Instructions' to the 'Cleaned Scraped Website Data' provided below. Use ONLY the provided website data as your context.

--- Cleaned Scraped Website Data ---
{cleaned_web_data}
--- End Cleaned Scraped Website Data ---

Extraction Instructions:
{extraction_instructions}

---
IMPORTANT: Follow the Extraction Instructions carefully using the website data.
Respond with ONLY a single, valid JSON object containing exactly one key-value pair.
- The key for the JSON object MUST be the string: "{attribute_key}"
- The value MUST be the result obtained by applying the Extraction Instructions to the Cleaned Scraped Website Data.
- Provide the value as a JSON string.
- If the information cannot be determined from the Cleaned Scraped Website Data based on the instructions, the value MUST be "NOT FOUND".
- Do NOT include any explanations or reasoning outside the JSON object.

Example Output Format:
{"{attribute_key}": "extracted_value_based_on_instructions"}

Output:
`

const pdfTemplate = `
You are an expert data extractor. Your goal is to extract a specific piece of information based on the Extraction Instructions provided below, using ONLY the Document Context from PDFs.

Part Number Information (if provided by user):
{part_number}

--- Document Context (from PDFs) ---
{context}
--- End Document Context ---

Extraction Instructions:
{extraction_instructions}

---
IMPORTANT: Respond with ONLY a single, valid JSON object containing exactly one key-value pair.
- The key for the JSON object MUST be the string: "{attribute_key}"
- The value MUST be the extracted result determined by following the Extraction Instructions using the Document Context provided above.
- Provide the value as a JSON string. Examples: "GF, T", "none", "NOT FOUND", "Female", "7.2", "999".
- Do NOT include any explanations, reasoning, or any text outside of the single JSON object in your response.

Example Output Format:
{"{attribute_key}": "extracted_value_from_pdf"}

Output:
`

// VisionInstruction asks the vision model to transcribe a page as markdown.
const VisionInstruction = `You are an expert document analysis assistant. Extract ALL text content from the image and format it as clean, well-structured GitHub Flavored Markdown.

Follow these formatting instructions:
1. Use appropriate Markdown heading levels based on visual hierarchy
2. Format tables using GitHub Flavored Markdown table syntax
3. Format key-value pairs using bold for keys: ` + "`**Key:** Value`" + `
4. Represent checkboxes as ` + "`[x]` or `[ ]`" + `
5. Preserve bulleted/numbered lists using standard Markdown syntax
6. Maintain paragraph structure and line breaks
7. Extract text labels from diagrams/images
8. Ensure all visible text is captured accurately

Output only the generated Markdown content.`

const noPartNumber = "Not Provided"

// WebPrompt builds the prompt for the web stage.
func WebPrompt(cleanedWebData, instructions, key string) string {
	return strings.NewReplacer(
		"{cleaned_web_data}", cleanedWebData,
		"{extraction_instructions}", instructions,
		"{attribute_key}", key,
	).Replace(webTemplate)
}

// PDFPrompt builds the prompt for the document stage.
func PDFPrompt(context, instructions, key, partNumber string) string {
	if partNumber == "" {
		partNumber = noPartNumber
	}
	return strings.NewReplacer(
		"{part_number}", partNumber,
		"{context}", context,
		"{extraction_instructions}", instructions,
		"{attribute_key}", key,
	).Replace(pdfTemplate)
}

// RetrievalQuery is the similarity query used to pick passages for key.
func RetrievalQuery(key, partNumber string) string {
	if partNumber == "" {
		partNumber = "N/A"
	}
	return fmt.Sprintf("Extract information about %s for part number %s", key, partNumber)
}

// FormatPassages renders retrieved passages as numbered context blocks.
func FormatPassages(passages []domain.Passage) string {
	parts := make([]string, 0, len(passages))
	for i, p := range passages {
		source := p.SourceDocument
		if source == "" {
			source = "Unknown"
		}
		page := "N/A"
		if p.Page > 0 {
			page = fmt.Sprintf("%d", p.Page)
		}
		parts = append(parts, fmt.Sprintf("Chunk %d from '%s' (Page %s):\n%s", i+1, source, page, p.Text))
	}
	return strings.Join(parts, "\n\n---\n\n")
}
