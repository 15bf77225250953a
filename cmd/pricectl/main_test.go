package main

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"
)

func TestRunLocal(t *testing.T) {
	base := []string{"--strike", "100", "--expiry", "1", "--vol", "0.2", "--rate", "0.05"}

	var out bytes.Buffer
	if err := run(append([]string{"price", "--spot", "100"}, base...), &out); err != nil {
		t.Fatal(err)
	}
	var scalar struct {
		Price float64 `json:"price"`
	}
	if err := json.Unmarshal(out.Bytes(), &scalar); err != nil || math.Abs(scalar.Price-10.450583572185565) > 1e-9 {
		t.Fatalf("price output = %s", out.String())
	}

	out.Reset()
	if err := run(append([]string{"price"}, base...), &out); err != nil {
		t.Fatal(err)
	}
	var curve struct {
		Prices []float64 `json:"prices"`
	}
	if err := json.Unmarshal(out.Bytes(), &curve); err != nil || len(curve.Prices) != 21 {
		t.Fatalf("curve output = %s", out.String())
	}

	out.Reset()
	if err := run(append([]string{"iv", "--spot", "100", "--market-price", "10.450583572185565"}, base...), &out); err != nil {
		t.Fatal(err)
	}
	var iv struct {
		Volatility float64 `json:"volatility"`
	}
	if err := json.Unmarshal(out.Bytes(), &iv); err != nil || math.Abs(iv.Volatility-0.2) > 1e-6 {
		t.Fatalf("iv output = %s", out.String())
	}
}

func TestRunErrors(t *testing.T) {
	var out bytes.Buffer
	cases := [][]string{
		nil,
		{"bogus", "--strike", "100", "--expiry", "1"},
		{"greeks", "--strike", "100", "--expiry", "1"},
		{"price", "--strike", "-1", "--expiry", "1", "--spot", "100"},
		{"price", "--no-such-flag"},
		{"price", "--strike", "100", "--spot", "100"},
	}
	for _, args := range cases {
		if err := run(args, &out); err == nil {
			t.Errorf("run(%v) succeeded", args)
		}
	}
}

func TestRunAtExpiry(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"price", "-t", "PUT", "-k", "100", "-T", "0", "-s", "90"}, &out); err != nil {
		t.Fatal(err)
	}
	var res struct {
		Price float64 `json:"price"`
	}
	if err := json.Unmarshal(out.Bytes(), &res); err != nil || res.Price != 10 {
		t.Fatalf("price at expiry = %s", out.String())
	}
}
