package model

// InstantiateMsg creates the store configuration.
type InstantiateMsg struct {
	Owner string `json:"owner"`
}

// ExecuteMsg is the tagged union of mutations. Exactly one field is set.
type ExecuteMsg struct {
	SetScore *SetScore `json:"set_score,omitempty"`
}

// SetScore writes Score under Token for Address. An empty Token addresses the
// unnamed entry.
type SetScore struct {
	Address string `json:"address"`
	Token   string `json:"token,omitempty"`
	Score   int32  `json:"score"`
}

// Validate reports whether exactly one variant is set.
func (m ExecuteMsg) Validate() error {
	if m.SetScore == nil {
		return ErrUnknownMessage
	}
	return nil
}

// QueryMsg is the tagged union of reads. Exactly one field is set.
type QueryMsg struct {
	GetOwner  *GetOwner  `json:"get_owner,omitempty"`
	GetScore  *GetScore  `json:"get_score,omitempty"`
	GetScores *GetScores `json:"get_scores,omitempty"`
}

// GetOwner reads the configured owner.
type GetOwner struct{}

// GetScore reads one token score of an address.
type GetScore struct {
	Address string `json:"address"`
	Token   string `json:"token,omitempty"`
}

// GetScores reads every token score of an address.
type GetScores struct {
	Address string `json:"address"`
}

// Validate reports whether exactly one variant is set.
func (m QueryMsg) Validate() error {
	n := 0
	if m.GetOwner != nil {
		n++
	}
	if m.GetScore != nil {
		n++
	}
	if m.GetScores != nil {
		n++
	}
	switch n {
	case 0:
		return ErrUnknownMessage
	case 1:
		return nil
	default:
		return ErrAmbiguousMessage
	}
}

// OwnerResponse answers GetOwner.
type OwnerResponse struct {
	Owner string `json:"owner"`
}

// ScoreResponse answers GetScore.
type ScoreResponse struct {
	Address string `json:"address"`
	Token   string `json:"token"`
	Score   int32  `json:"score"`
}

// ScoresResponse answers GetScores.
type ScoresResponse struct {
	Address string      `json:"address"`
	Scores  ScoreRecord `json:"scores"`
}

// Attribute is a key/value pair attached to a Response.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Response acknowledges a successful instantiate or execute.
type Response struct {
	Attributes []Attribute `json:"attributes"`
}

// NewResponse returns an empty acknowledgement.
func NewResponse() Response {
	return Response{Attributes: []Attribute{}}
}

// AddAttribute returns r with key=value appended.
func (r Response) AddAttribute(key, value string) Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

// Attribute returns the value of the first attribute named key.
func (r Response) Attribute(key string) (string, bool) {
	for _, a := range r.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}
