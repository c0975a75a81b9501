package identity

import (
	"encoding/hex"
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

func prefixHash(data []byte) common.Hash {
	msg := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(data), data)
	return crypto.Keccak256Hash([]byte(msg))
}

func publicKeyBytesToAddress(publicKey []byte) *common.Address {
	if len(publicKey) < 1 {
		return nil
	}

	hash := crypto.Keccak256Hash(publicKey[1:]).Bytes()
	address := hash[12:]

	addr := common.HexToAddress(hex.EncodeToString(address))
	return &addr
}

// RecoverSigner recovers the address that signed msg with a personal-sign
// style signature. Used to bind senders and relayers to the address they
// claim to act for.
func RecoverSigner(msg string, sig string) (*common.Address, error) {
	sigBytes, err := hexutil.Decode(sig)
	if err != nil {
		log.Printf("Invalid signature '%s' hex: %s", sig, err.Error())
		return nil, fmt.Errorf("invalid signature hex")
	}

	if len(sigBytes) != 65 {
		return nil, fmt.Errorf("wrong signature length")
	}

	if sigBytes[64] != 27 && sigBytes[64] != 28 && sigBytes[64] != 0 && sigBytes[64] != 1 {
		log.Printf("Wrong signature '%s' checksum: %v", sig, sigBytes[64])
		return nil, fmt.Errorf("wrong signature checksum")
	}

	if sigBytes[64] == 27 || sigBytes[64] == 28 {
		sigBytes[64] = sigBytes[64] - 27
	}

	msgHash := prefixHash([]byte(msg))
	sigPublicKey, err := crypto.Ecrecover(msgHash.Bytes(), sigBytes)
	if err != nil {
		log.Printf("Cannot decode public key: %s", err.Error())
		return nil, fmt.Errorf("cannot decode public key")
	}

	address := publicKeyBytesToAddress(sigPublicKey)

	return address, nil
}
