package vesting

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var errBadSignature = errors.New("vesting: malformed function signature")

// Selector is the 4-byte function identifier.
type Selector [4]byte

// Hex renders the selector with a 0x prefix.
func (s Selector) Hex() string { return fmt.Sprintf("0x%x", s[:]) }

// Handler executes a forwarded call on behalf of a wallet.
type Handler struct {
	// SpendArg is the position of the argument carrying the amount of the
	// wallet token the call draws, or -1 when the call spends none.
	SpendArg int
	Exec     func(wallet common.Address, args []interface{}) error
}

type dispatchEntry struct {
	method  abi.Method
	handler Handler
}

// ParseSignature builds the ABI method for a canonical signature such as
// "buyAndLock(address,uint256,uint256)".
func ParseSignature(signature string) (abi.Method, error) {
	open := strings.IndexByte(signature, '(')
	if open <= 0 || !strings.HasSuffix(signature, ")") {
		return abi.Method{}, fmt.Errorf("%w: %q", errBadSignature, signature)
	}
	name := signature[:open]
	body := signature[open+1 : len(signature)-1]
	var inputs abi.Arguments
	if body != "" {
		for i, raw := range strings.Split(body, ",") {
			typ, err := abi.NewType(strings.TrimSpace(raw), "", nil)
			if err != nil {
				return abi.Method{}, fmt.Errorf("%w: %q: %v", errBadSignature, signature, err)
			}
			inputs = append(inputs, abi.Argument{Name: fmt.Sprintf("arg%d", i), Type: typ})
		}
	}
	method := abi.NewMethod(name, name, abi.Function, "nonpayable", false, false, inputs, nil)
	if method.Sig != signature {
		return abi.Method{}, fmt.Errorf("%w: %q is not canonical (%q)", errBadSignature, signature, method.Sig)
	}
	return method, nil
}

// SelectorOf returns the selector of signature.
func SelectorOf(signature string) (Selector, error) {
	method, err := ParseSignature(signature)
	if err != nil {
		return Selector{}, err
	}
	var sel Selector
	copy(sel[:], method.ID)
	return sel, nil
}

// EncodeCall packs calldata for signature. Used by clients and tests.
func EncodeCall(signature string, args ...interface{}) ([]byte, error) {
	method, err := ParseSignature(signature)
	if err != nil {
		return nil, err
	}
	packed, err := method.Inputs.Pack(args...)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, method.ID...), packed...), nil
}

func (d *dispatchEntry) decode(calldata []byte) ([]interface{}, error) {
	return d.method.Inputs.Unpack(calldata[4:])
}

func (d *dispatchEntry) spend(args []interface{}) (*big.Int, error) {
	if d.handler.SpendArg < 0 {
		return big.NewInt(0), nil
	}
	if d.handler.SpendArg >= len(args) {
		return nil, fmt.Errorf("vesting: spend argument %d out of range", d.handler.SpendArg)
	}
	amount, ok := args[d.handler.SpendArg].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("vesting: spend argument %d is %T", d.handler.SpendArg, args[d.handler.SpendArg])
	}
	return amount, nil
}
