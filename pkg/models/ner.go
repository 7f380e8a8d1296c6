package models

// Wire types for the external NER server. The server accepts a batch of
// texts and returns labeled matches with byte offsets.

type NerMatch struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

type NerEntity struct {
	Name    string     `json:"name"`
	Label   string     `json:"label"`
	Matches []NerMatch `json:"matches"`
}

type NerRequestRecord struct {
	UUID     string `json:"uuid"`
	Text     string `json:"text"`
	Language string `json:"language"`
}

type NerResponseRecord struct {
	UUID     string      `json:"uuid"`
	Entities []NerEntity `json:"entities"`
}

type NerRequest struct {
	Texts []NerRequestRecord `json:"texts"`
}

type NerResponse struct {
	Texts []NerResponseRecord `json:"texts"`
}
