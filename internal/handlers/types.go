package handlers

// Directory is the ACME directory object advertised to clients.
type Directory struct {
	KeyChange  string `json:"keyChange"`
	NewAccount string `json:"newAccount"`
	NewNonce   string `json:"newNonce"`
	NewOrder   string `json:"newOrder"`
	RevokeCert string `json:"revokeCert"`
}

// DirectoryResponse carries the pre-rendered directory document.
type DirectoryResponse struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// NonceResponse hands a fresh anti-replay nonce to the client.
type NonceResponse struct {
	ReplayNonce  string `doc:"A fresh anti-replay nonce" header:"Replay-Nonce"`
	CacheControl string `header:"Cache-Control"`
}
