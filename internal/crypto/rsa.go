package crypto

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// LoadPublicKey загружает публичный RSA ключ из файла в формате PEM.
//
// filePath — путь до файла с публичным ключом.
// Возвращает публичный ключ или ошибку.
func LoadPublicKey(filePath string) (*rsa.PublicKey, error) {
	keyData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}

	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, fmt.Errorf("failed to parse PEM block containing the key")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key")
	}

	return rsaKey, nil
}

// LoadPrivateKey загружает приватный RSA ключ из файла в формате PEM.
//
// filePath — путь до файла с приватным ключом.
// Возвращает приватный ключ или ошибку.
func LoadPrivateKey(filePath string) (*rsa.PrivateKey, error) {
	keyData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}

	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, fmt.Errorf("failed to parse PEM block containing the key")
	}

	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return priv, nil
}

// EncryptData шифрует данные с помощью публичного RSA ключа.
//
// Данные шифруются поблочно (OAEP ограничивает размер одного блока),
// поэтому размер полезной нагрузки не ограничен размером ключа.
func EncryptData(data []byte, publicKey *rsa.PublicKey) ([]byte, error) {
	chunkSize := publicKey.Size() - 2*sha256.Size - 2
	var out bytes.Buffer
	for len(data) > 0 {
		n := chunkSize
		if len(data) < n {
			n = len(data)
		}
		encrypted, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, publicKey, data[:n], nil)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt data: %w", err)
		}
		out.Write(encrypted)
		data = data[n:]
	}
	return out.Bytes(), nil
}

// DecryptData расшифровывает данные с помощью приватного RSA ключа.
//
// encryptedData — зашифрованные данные (последовательность OAEP-блоков).
// privateKey — приватный RSA ключ.
// Возвращает расшифрованные данные или ошибку.
func DecryptData(encryptedData []byte, privateKey *rsa.PrivateKey) ([]byte, error) {
	blockSize := privateKey.Size()
	var out bytes.Buffer
	for len(encryptedData) > 0 {
		n := blockSize
		if len(encryptedData) < n {
			n = len(encryptedData)
		}
		decrypted, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, privateKey, encryptedData[:n], nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt data: %w", err)
		}
		out.Write(decrypted)
		encryptedData = encryptedData[n:]
	}
	return out.Bytes(), nil
}
