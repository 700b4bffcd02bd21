package rpc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"solsavings/crypto"
)

// Amounts travel as decimal strings: JSON numbers decode through float64 and
// lose precision past 2^53, which real balances exceed.

type lendingPositionParams struct {
	Address string `json:"address"`
}

type lendingAmountParams struct {
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

type lendingOriginateParams struct {
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
	LTV    uint64 `json:"ltv"`
}

type lendingRepayParams struct {
	Owner  string `json:"owner"`
	LoanID uint64 `json:"loanId"`
	Amount string `json:"amount"`
}

type lendingLiquidateParams struct {
	Liquidator string `json:"liquidator"`
	Borrower   string `json:"borrower"`
	LoanID     uint64 `json:"loanId"`
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected exactly one parameter object, got %d", len(req.Params))
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return fmt.Errorf("invalid parameter object: %v", err)
	}
	return nil
}

func parseLedgerAddress(field, value string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return crypto.Address{}, fmt.Errorf("%s is required", field)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%s: %v", field, err)
	}
	if addr.Prefix() != crypto.SavPrefix {
		return crypto.Address{}, fmt.Errorf("%s: unexpected address prefix %q", field, addr.Prefix())
	}
	return addr, nil
}

func parseAmount(field, value string) (uint64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	amount, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a decimal unsigned integer", field)
	}
	return amount, nil
}

func (s *Server) handleLendingGetPosition(w http.ResponseWriter, req *RPCRequest) {
	var params lendingPositionParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeRPCError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := parseLedgerAddress("address", params.Address)
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	pos, modErr := s.lending.GetPosition(addr)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeRPCResult(w, req.ID, pos)
}

func (s *Server) handleLendingListTiers(w http.ResponseWriter, req *RPCRequest) {
	writeRPCResult(w, req.ID, s.lending.Tiers())
}

func (s *Server) handleLendingDeposit(w http.ResponseWriter, req *RPCRequest) {
	var params lendingAmountParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeRPCError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseLedgerAddress("owner", params.Owner)
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	result, modErr := s.lending.Deposit(owner, amount)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeRPCResult(w, req.ID, result)
}

func (s *Server) handleLendingWithdraw(w http.ResponseWriter, req *RPCRequest) {
	var params lendingAmountParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeRPCError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseLedgerAddress("owner", params.Owner)
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	result, modErr := s.lending.Withdraw(owner, amount)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeRPCResult(w, req.ID, result)
}

func (s *Server) handleLendingOriginate(w http.ResponseWriter, req *RPCRequest) {
	var params lendingOriginateParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeRPCError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseLedgerAddress("owner", params.Owner)
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	result, modErr := s.lending.Originate(owner, amount, params.LTV)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeRPCResult(w, req.ID, result)
}

func (s *Server) handleLendingRepay(w http.ResponseWriter, req *RPCRequest) {
	var params lendingRepayParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeRPCError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseLedgerAddress("owner", params.Owner)
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	result, modErr := s.lending.Repay(owner, params.LoanID, amount)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeRPCResult(w, req.ID, result)
}

func (s *Server) handleLendingLiquidate(w http.ResponseWriter, req *RPCRequest) {
	var params lendingLiquidateParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeRPCError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	liquidator, err := parseLedgerAddress("liquidator", params.Liquidator)
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	borrower, err := parseLedgerAddress("borrower", params.Borrower)
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	result, modErr := s.lending.Liquidate(liquidator, borrower, params.LoanID)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeRPCResult(w, req.ID, result)
}
