package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/harunnryd/sampark/pkg/sampark"
	twiliotransport "github.com/harunnryd/sampark/pkg/transports/twilio"
)

func main() {
	configPath := flag.String("config", "", "")
	serverURL := flag.String("server", "", "base URL of a running sampark server")
	to := flag.String("to", "", "single destination number")
	phones := flag.String("phones", "", "comma separated numbers for a bulk batch")
	batchID := flag.String("batch", "", "batch id for -phones")
	campaignID := flag.String("campaign", "", "stored campaign id")
	campaignText := flag.String("text", "", "ad-hoc campaign text")
	flag.Parse()
	if *to == "" && *phones == "" {
		fmt.Println("usage: make_call -to=+91... | -phones=+91...,+91... -batch=B1 [-campaign=id] [-text=...] [-server=...]")
		os.Exit(1)
	}

	base := strings.TrimRight(*serverURL, "/")
	if base == "" {
		cfg, err := sampark.LoadConfig(*configPath)
		if err != nil {
			fmt.Println("config error:", err)
			os.Exit(1)
		}
		base = twiliotransport.Config{PublicURL: cfg.Server.PublicURL, ServerAddr: cfg.Server.Addr}.BaseURL()
	}

	path := "/call"
	body := map[string]any{"to": *to}
	if *phones != "" {
		path = "/bulk-call"
		body = map[string]any{"phones": *phones, "batchId": *batchID}
	}
	if *campaignID != "" {
		body["campaignId"] = *campaignID
	}
	if *campaignText != "" {
		body["campaignText"] = *campaignText
	}

	out, status, err := post(base+path, body)
	if err != nil {
		fmt.Println("request error:", err)
		os.Exit(1)
	}
	fmt.Println(status, strings.TrimSpace(out))
	if status >= 300 {
		os.Exit(1)
	}
}

func post(url string, body any) (string, int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", 0, err
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(out), resp.StatusCode, nil
}
