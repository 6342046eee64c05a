package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"soliver/crypto"
)

const tokenEnv = "SOLIVER_CLI_TOKEN"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	if os.Args[1] == "keygen" {
		if err := keygen(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	flags := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	rpcURL := flags.String("rpc", "http://localhost:8645", "JSON-RPC endpoint")
	borrower := flags.String("borrower", "", "borrower address (bech32)")
	from := flags.String("from", "", "payer address (bech32)")
	liquidator := flags.String("liquidator", "", "liquidator address (bech32)")
	amount := flags.String("amount", "", "amount (base-10 integer)")
	address := flags.String("address", "", "vault owner address (bech32)")
	_ = flags.Parse(os.Args[2:])

	var (
		method string
		params interface{}
	)
	switch os.Args[1] {
	case "borrow":
		method = "vault_borrow"
		params = map[string]string{"borrower": *borrower, "amount": *amount}
	case "repay":
		method = "vault_repay"
		params = map[string]string{"from": *from, "amount": *amount}
	case "liquidate":
		method = "vault_liquidate"
		params = map[string]string{"liquidator": *liquidator, "borrower": *borrower}
	case "get":
		method = "vault_get"
		params = map[string]string{"address": *address}
	default:
		usage()
		os.Exit(2)
	}

	result, err := call(*rpcURL, method, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(result)
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: soliver-cli <borrow|repay|liquidate|get|keygen> [flags]")
	fmt.Fprintln(os.Stderr, "Set "+tokenEnv+" to authenticate mutating calls.")
}

// keygen generates a fresh borrower keypair and prints the bech32 address
// alongside the hex-encoded private key.
func keygen() error {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	fmt.Printf("address: %s\n", key.PubKey().Address())
	fmt.Printf("privateKey: %s\n", hex.EncodeToString(key.Bytes()))
	return nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int         `json:"code"`
		Message string      `json:"message"`
		Data    interface{} `json:"data"`
	} `json:"error"`
}

func call(url, method string, params interface{}) (string, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  []interface{}{params},
		ID:      1,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := strings.TrimSpace(os.Getenv(tokenEnv)); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("malformed response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("rpc error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}
	pretty := new(bytes.Buffer)
	if err := json.Indent(pretty, decoded.Result, "", "  "); err != nil {
		return string(decoded.Result), nil
	}
	return pretty.String(), nil
}
