package rewards

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

var (
	ErrSignatureDeadlineExpired = errors.New("rewards engine: SIGNATURE_DEADLINE_EXPIRED")
	ErrInvalidSignature         = errors.New("rewards engine: INVALID_SIGNATURE")
)

// Domain is the EIP-712 domain withdraw signatures are bound to.
type Domain struct {
	Name    string
	Version string
	ChainID *big.Int
}

var withdrawTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Withdraw": {
		{Name: "from", Type: "address"},
		{Name: "to", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	},
}

// WithdrawDigest returns the EIP-712 digest a holder signs to authorise a
// withdrawal to to.
func WithdrawDigest(domain Domain, verifyingContract, from, to common.Address, amount, nonce, deadline *big.Int) ([]byte, error) {
	chainID := domain.ChainID
	if chainID == nil {
		chainID = big.NewInt(0)
	}
	typed := apitypes.TypedData{
		Types:       withdrawTypes,
		PrimaryType: "Withdraw",
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(chainID)),
			VerifyingContract: verifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"from":     from.Hex(),
			"to":       to.Hex(),
			"amount":   amount.String(),
			"nonce":    nonce.String(),
			"deadline": deadline.String(),
		},
	}
	digest, _, err := apitypes.TypedDataAndHash(typed)
	if err != nil {
		return nil, fmt.Errorf("rewards engine: typed data: %w", err)
	}
	return digest, nil
}

// recoverSigner returns the address that produced sig over digest. Both the
// 0/1 and the 27/28 recovery id conventions are accepted.
func recoverSigner(digest, sig []byte) (common.Address, error) {
	if len(sig) != ethcrypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
