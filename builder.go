package paygate

// RequirementBody is the canonical 402 response body for a single
// endpoint. The field set is fixed; Error is omitted on a fresh challenge
// and carries the rejection reason when a supplied proof was refused.
type RequirementBody struct {
	Resource          string `json:"resource"`
	Price             string `json:"price"`
	Network           string `json:"network"`
	PayTo             string `json:"payTo"`
	Asset             string `json:"asset"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds"`
	Description       string `json:"description,omitempty"`
	Error             string `json:"error,omitempty"`
}

// EndpointBody is one entry of a multi-endpoint requirement body.
type EndpointBody struct {
	Path              string `json:"path"`
	Method            string `json:"method"`
	Price             string `json:"price"`
	Network           string `json:"network"`
	PayTo             string `json:"payTo"`
	Asset             string `json:"asset"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds"`
	Description       string `json:"description,omitempty"`
}

// CatalogBody is the multi-endpoint requirement body, a strict superset of
// RequirementBody used when a resource aggregates several endpoints.
type CatalogBody struct {
	Resource  string         `json:"resource"`
	Upstream  string         `json:"upstream,omitempty"`
	Endpoints []EndpointBody `json:"endpoints"`
}

// BuildRequirementBody produces the 402 body for one requirement. The
// output is deterministic for a given requirement so resubmitted requests
// always see the terms they were originally challenged with.
func BuildRequirementBody(req PaymentRequirement, errMsg string) RequirementBody {
	return RequirementBody{
		Resource:          req.Resource,
		Price:             req.Price,
		Network:           req.Network,
		PayTo:             req.PayTo,
		Asset:             req.Asset,
		MaxTimeoutSeconds: req.MaxTimeoutSeconds,
		Description:       req.Description,
		Error:             errMsg,
	}
}

// Requirement converts a body back into the requirement it advertises.
// Used client-side after parsing a 402 challenge.
func (b RequirementBody) Requirement() PaymentRequirement {
	return PaymentRequirement{
		Resource:          b.Resource,
		Price:             b.Price,
		Network:           b.Network,
		PayTo:             b.PayTo,
		Asset:             b.Asset,
		MaxTimeoutSeconds: b.MaxTimeoutSeconds,
		Description:       b.Description,
	}
}

// BuildCatalogBody produces the multi-endpoint body for a whole document.
func BuildCatalogBody(doc RequirementDoc) CatalogBody {
	body := CatalogBody{
		Resource:  doc.Resource,
		Upstream:  doc.Upstream,
		Endpoints: make([]EndpointBody, 0, len(doc.Endpoints)),
	}
	for _, ep := range doc.Endpoints {
		body.Endpoints = append(body.Endpoints, EndpointBody{
			Path:              ep.Path,
			Method:            ep.Method,
			Price:             ep.Price,
			Network:           ep.Network,
			PayTo:             ep.PayTo,
			Asset:             ep.Asset,
			MaxTimeoutSeconds: ep.MaxTimeoutSeconds,
			Description:       ep.Description,
		})
	}
	return body
}
