package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Remote implements Registry against a chain-gateway service exposing
// the proof-registry contract over HTTP. Response bodies mirror the
// contract events (ProofRegistered, DealLinked, DealStatusUpdated).
type Remote struct {
	BaseURL string
	Token   string
	Client  *http.Client
	Limiter *rate.Limiter
}

// NewRemote initializes a chain-gateway registry client.
func NewRemote(baseURL, token string) *Remote {
	return &Remote{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

func (r *Remote) do(ctx context.Context, method, path string, body, out interface{}) error {
	if r.Limiter != nil {
		if err := r.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %v", err)
		}
	}

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.BaseURL+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	case http.StatusBadRequest:
		return ErrInvalidInput
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return r.conflictError(resp)
	default:
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: chain gateway returned status %d", ErrUnavailable, resp.StatusCode)
		}
		return fmt.Errorf("chain gateway returned status %d", resp.StatusCode)
	}
}

// conflictError maps the gateway's conflict reason to the matching
// duplicate sentinel.
func (r *Remote) conflictError(resp *http.Response) error {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		switch body.Reason {
		case "duplicate_proof_id":
			return ErrDuplicateProofID
		case "duplicate_cid":
			return ErrDuplicateCID
		}
	}
	return ErrDuplicateHash
}

// RegisterProof commits a new proof through the chain gateway.
func (r *Remote) RegisterProof(ctx context.Context, params RegisterParams) (*Registration, error) {
	if params.ProofID == "" || params.Hash == "" || params.CID == "" {
		return nil, ErrInvalidInput
	}
	params.Hash = strings.ToLower(params.Hash)

	var reg Registration
	if err := r.do(ctx, http.MethodPost, "/proofs", params, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// LinkDeal appends a deal entry to an existing proof.
func (r *Remote) LinkDeal(ctx context.Context, proofID string, deal DealEntry, caller string) error {
	body := struct {
		DealEntry
		Caller string `json:"caller"`
	}{DealEntry: deal, Caller: caller}
	return r.do(ctx, http.MethodPost, "/proofs/"+url.PathEscape(proofID)+"/deals", body, nil)
}

// UpdateDealStatus toggles the active flag on an existing deal entry.
func (r *Remote) UpdateDealStatus(ctx context.Context, proofID string, dealIndex int, active bool, caller string) error {
	body := struct {
		Active bool   `json:"active"`
		Caller string `json:"caller"`
	}{Active: active, Caller: caller}
	path := fmt.Sprintf("/proofs/%s/deals/%d", url.PathEscape(proofID), dealIndex)
	err := r.do(ctx, http.MethodPatch, path, body, nil)
	if err == ErrInvalidInput {
		// The gateway reports an out-of-range index as a bad request.
		return ErrIndexOutOfRange
	}
	return err
}

// GetProof retrieves a proof by id.
func (r *Remote) GetProof(ctx context.Context, proofID string) (Proof, error) {
	var proof Proof
	err := r.do(ctx, http.MethodGet, "/proofs/"+url.PathEscape(proofID), nil, &proof)
	return proof, err
}

// GetProofByHash retrieves a proof by its content hash.
func (r *Remote) GetProofByHash(ctx context.Context, hash string) (Proof, error) {
	var proof Proof
	err := r.do(ctx, http.MethodGet, "/proofs/hash/"+url.PathEscape(strings.ToLower(hash)), nil, &proof)
	return proof, err
}

// GetProofByCID retrieves a proof by its content locator.
func (r *Remote) GetProofByCID(ctx context.Context, cid string) (Proof, error) {
	var proof Proof
	err := r.do(ctx, http.MethodGet, "/proofs/cid/"+url.PathEscape(cid), nil, &proof)
	return proof, err
}

// VerifyProof compares the stored hash through the gateway. Unknown
// ids verify false.
func (r *Remote) VerifyProof(ctx context.Context, proofID, hash string) (bool, error) {
	proof, err := r.GetProof(ctx, proofID)
	if err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return strings.EqualFold(proof.Hash, hash), nil
}

// CountActiveDeals returns the number of linked deals currently active.
func (r *Remote) CountActiveDeals(ctx context.Context, proofID string) (int, error) {
	proof, err := r.GetProof(ctx, proofID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range proof.Deals {
		if d.Active {
			n++
		}
	}
	return n, nil
}

type totals struct {
	Proofs uint64 `json:"proofs"`
	Deals  uint64 `json:"deals"`
}

// TotalProofs returns the contract's total-proof counter.
func (r *Remote) TotalProofs(ctx context.Context) (uint64, error) {
	var t totals
	err := r.do(ctx, http.MethodGet, "/totals", nil, &t)
	return t.Proofs, err
}

// TotalDeals returns the contract's total-deals counter.
func (r *Remote) TotalDeals(ctx context.Context) (uint64, error) {
	var t totals
	err := r.do(ctx, http.MethodGet, "/totals", nil, &t)
	return t.Deals, err
}
