package models

type SignInRequest struct {
	Token string `json:"token"`
}

type AddPlaylistRequest struct {
	URL string `json:"url"`
}

type GenerateRequest struct {
	Force bool `json:"force"`
}

type SubmitTestRequest struct {
	Answers []int `json:"answers"`
}

type CreditsResponse struct {
	Credits int            `json:"credits"`
	Costs   map[string]int `json:"costs"`
}
