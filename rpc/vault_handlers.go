package rpc

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"

	"soliver/crypto"
)

var (
	errAmountRequired  = errors.New("amount required")
	errAmountMalformed = errors.New("amount must be a base-10 integer")
)

type vaultBorrowParams struct {
	Borrower string `json:"borrower"`
	Amount   string `json:"amount"`
}

type vaultRepayParams struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type vaultLiquidateParams struct {
	Liquidator string `json:"liquidator"`
	Borrower   string `json:"borrower"`
}

type vaultGetParams struct {
	Address string `json:"address"`
}

type vaultNoticeResult struct {
	Sequence uint64 `json:"sequence"`
}

type vaultRepayResult struct {
	Remaining string `json:"remaining"`
	Settled   bool   `json:"settled"`
	Sequence  uint64 `json:"sequence,omitempty"`
}

func (s *Server) handleVaultBorrow(w http.ResponseWriter, req *RPCRequest, caller identity) {
	var params vaultBorrowParams
	if !decodeSingleObject(w, req, &params) {
		return
	}
	if !caller.actsFor(params.Borrower) {
		writeError(w, http.StatusForbidden, req.ID, codeUnauthorized, "token subject does not match borrower", nil)
		return
	}
	borrower, err := decodeBech32(params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid borrower", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	seq, moduleErr := s.vault.Borrow(borrower, amount)
	if moduleErr != nil {
		writeError(w, moduleErr.HTTPStatus, req.ID, moduleErr.Code, moduleErr.Message, moduleErr.Data)
		return
	}
	writeResult(w, req.ID, vaultNoticeResult{Sequence: seq})
}

func (s *Server) handleVaultRepay(w http.ResponseWriter, req *RPCRequest, caller identity) {
	var params vaultRepayParams
	if !decodeSingleObject(w, req, &params) {
		return
	}
	if !caller.actsFor(params.From) {
		writeError(w, http.StatusForbidden, req.ID, codeUnauthorized, "token subject does not match payer", nil)
		return
	}
	from, err := decodeBech32(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	remaining, moduleErr := s.vault.Repay(from, amount)
	if moduleErr != nil {
		writeError(w, moduleErr.HTTPStatus, req.ID, moduleErr.Code, moduleErr.Message, moduleErr.Data)
		return
	}
	writeResult(w, req.ID, vaultRepayResult{
		Remaining: remaining.String(),
		Settled:   remaining.Sign() == 0,
	})
}

func (s *Server) handleVaultLiquidate(w http.ResponseWriter, req *RPCRequest, caller identity) {
	var params vaultLiquidateParams
	if !decodeSingleObject(w, req, &params) {
		return
	}
	if !caller.hasRole(RoleLiquidator) {
		writeError(w, http.StatusForbidden, req.ID, codeUnauthorized, "liquidator role required", nil)
		return
	}
	if !caller.actsFor(params.Liquidator) {
		writeError(w, http.StatusForbidden, req.ID, codeUnauthorized, "token subject does not match liquidator", nil)
		return
	}
	liquidator, err := decodeBech32(params.Liquidator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid liquidator", err.Error())
		return
	}
	borrower, err := decodeBech32(params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid borrower", err.Error())
		return
	}
	seq, moduleErr := s.vault.Liquidate(liquidator, borrower)
	if moduleErr != nil {
		writeError(w, moduleErr.HTTPStatus, req.ID, moduleErr.Code, moduleErr.Message, moduleErr.Data)
		return
	}
	writeResult(w, req.ID, vaultNoticeResult{Sequence: seq})
}

func (s *Server) handleVaultGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected address parameter", nil)
		return
	}
	var addressParam string
	if err := json.Unmarshal(req.Params[0], &addressParam); err != nil {
		var wrapped vaultGetParams
		if err := json.Unmarshal(req.Params[0], &wrapped); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address parameter", err.Error())
			return
		}
		addressParam = wrapped.Address
	}
	addr, err := decodeBech32(addressParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	record, moduleErr := s.vault.Get(addr)
	if moduleErr != nil {
		writeError(w, moduleErr.HTTPStatus, req.ID, moduleErr.Code, moduleErr.Message, moduleErr.Data)
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "vault not found", strings.TrimSpace(addressParam))
		return
	}
	writeResult(w, req.ID, record)
}

func decodeSingleObject(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected parameter object", nil)
		return false
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return false
	}
	return true
}

func decodeBech32(value string) (crypto.Address, error) {
	return crypto.DecodeAddress(strings.TrimSpace(value))
}

// parseAmount parses a non-negative base-10 amount. Range and sign rules are
// enforced by the engine; this only rejects strings that are not integers.
func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, errAmountRequired
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, errAmountMalformed
	}
	return amount, nil
}
