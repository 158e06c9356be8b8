package wire

import "github.com/yndnr/ncabridge-go/internal/core/domain"

// Fixed signing policy expected by the agent.
const (
	ModuleBasics     = "kz.gov.pki.knca.basics"
	MethodSign       = "sign"
	StoragePKCS12    = "PKCS12"
	FormatCMS        = "cms"
	LocaleRU         = "ru"
	OIDClientAuthEKU = "1.3.6.1.5.5.7.3.2"
)

// SignRequest is the outbound "sign" call.
type SignRequest struct {
	// ID correlates the response with this request. Agents that do not
	// echo it are matched oldest-first.
	ID     string   `json:"id,omitempty"`
	Module string   `json:"module"`
	Method string   `json:"method"`
	Args   SignArgs `json:"args"`
}

// SignArgs carries the payload and the signing policy.
type SignArgs struct {
	AllowedStorages []string      `json:"allowedStorages"`
	Format          string        `json:"format"`
	Data            string        `json:"data"`
	SigningParams   SigningParams `json:"signingParams"`
	SignerParams    SignerParams  `json:"signerParams"`
	Locale          string        `json:"locale"`
}

// SigningParams controls how the agent treats the payload.
type SigningParams struct {
	Decode      bool       `json:"decode"`
	Encapsulate bool       `json:"encapsulate"`
	Digested    bool       `json:"digested"`
	TSAProfile  TSAProfile `json:"tsaProfile"`
}

// TSAProfile is sent as an empty object: no timestamp authority.
type TSAProfile struct{}

// SignerParams restricts which certificates the user may pick.
type SignerParams struct {
	ExtKeyUsageOIDs []string `json:"extKeyUsageOids"`
	Chain           []string `json:"chain"`
}

// NewSignRequest builds a sign request for data with the fixed policy.
// data is embedded verbatim.
func NewSignRequest(id, data string) *SignRequest {
	return &SignRequest{
		ID:     id,
		Module: ModuleBasics,
		Method: MethodSign,
		Args: SignArgs{
			AllowedStorages: []string{StoragePKCS12},
			Format:          FormatCMS,
			Data:            data,
			SigningParams: SigningParams{
				Decode:      true,
				Encapsulate: false,
				Digested:    false,
			},
			SignerParams: SignerParams{
				ExtKeyUsageOIDs: []string{OIDClientAuthEKU},
				Chain:           []string{},
			},
			Locale: LocaleRU,
		},
	}
}

// Validate checks the request before it is put on the wire.
func (r *SignRequest) Validate() error {
	if r.Module == "" || r.Method == "" {
		return domain.ErrBadRequest.WithDetails("module and method are required")
	}
	if r.Args.Data == "" {
		return domain.ErrMissingArgument.WithDetails("data to sign is empty")
	}
	if len(r.Args.AllowedStorages) == 0 {
		return domain.ErrBadRequest.WithDetails("no storage allowed")
	}
	return nil
}
