//go:build testutils

package testutils

import "github.com/getentag/entag/pkg/models"

// TestDocuments are markdown documents that exercise every extraction
// source: plain numbers, measurements, ranges, gazetteer entries and
// masked regions.
var TestDocuments = []models.CreateDocumentRequest{
	{
		DocumentID: "sizing-guide",
		Content: "# Sizing Guide\n\n" +
			"Most boards sold in Texas run 30-37 inches long. Decks narrower\n" +
			"than 7.5 inches are rare.\n\n" +
			"```\n" +
			"example: 99 inches is ignored inside fences\n" +
			"```\n",
		Metadata: map[string]interface{}{"source": "catalog"},
	},
	{
		DocumentID: "survey-results",
		Content: "## Survey\n\n" +
			"Roughly 45.5% of riders in New Mexico commute between 3 and 5\n" +
			"miles. The rest ride for fun.\n\n" +
			"| region | share |\n" +
			"| ------ | ----- |\n" +
			"| north  | 12%   |\n",
		Metadata: map[string]interface{}{"source": "survey"},
	},
	{
		DocumentID: "plain-notes",
		Content:    "Nothing to see here but the number 42.\n",
	},
}
