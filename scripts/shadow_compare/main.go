package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/noah-isme/edu-crm-api/pkg/contentapi"
)

type target struct {
	Entity   string
	Critical bool
}

type comparison struct {
	Target      target
	LegacyTotal int
	CRMTotal    int
	Error       error
	DurationCRM time.Duration
}

func (c comparison) match() bool { return c.Error == nil && c.LegacyTotal == c.CRMTotal }

// shadow_compare checks that every legacy collection landed in the CRM after a
// legacy-import run by comparing record totals on both sides.
func main() {
	var (
		crmBase    string
		crmToken   string
		legacyBase string
		entities   string
		optional   string
		timeout    time.Duration
	)

	flag.StringVar(&crmBase, "crm-base", "http://localhost:8080/api/v1", "CRM API base URL including prefix")
	flag.StringVar(&crmToken, "crm-token", os.Getenv("CRM_TOKEN"), "Bearer token for the CRM API")
	flag.StringVar(&legacyBase, "legacy-base", os.Getenv("LEGACY_API_URL"), "Legacy content API base URL")
	flag.StringVar(&entities, "entities", "agencies,leads,students", "Comma separated collections to compare")
	flag.StringVar(&optional, "optional", "agencies", "Collections whose mismatch does not fail the run")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	if legacyBase == "" {
		log.Fatal("legacy base URL is required")
	}
	targets := buildTargets(entities, optional)
	if len(targets) == 0 {
		log.Fatal("no entities to compare")
	}

	ctx := context.Background()
	legacy := contentapi.New(legacyBase, os.Getenv("LEGACY_API_TOKEN"), timeout, nil)
	client := &http.Client{Timeout: timeout}
	var (
		comparisons  []comparison
		breaking     int
		optionalDiff int
	)

	for _, t := range targets {
		comp := compareTarget(ctx, legacy, client, crmBase, crmToken, t)
		if !comp.match() {
			if t.Critical {
				breaking++
			} else {
				optionalDiff++
			}
		}
		comparisons = append(comparisons, comp)
	}

	printReport(comparisons)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func buildTargets(entities, optional string) []target {
	soft := make(map[string]bool)
	for _, name := range strings.Split(optional, ",") {
		soft[strings.TrimSpace(name)] = true
	}
	var out []target
	for _, name := range strings.Split(entities, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, target{Entity: name, Critical: !soft[name]})
	}
	return out
}

func compareTarget(ctx context.Context, legacy *contentapi.Client, client *http.Client, crmBase, token string, tgt target) comparison {
	comp := comparison{Target: tgt}

	_, meta, err := legacy.List(ctx, tgt.Entity, 1, 1)
	if err != nil {
		comp.Error = fmt.Errorf("legacy request failed: %w", err)
		return comp
	}
	comp.LegacyTotal = meta.Total

	start := time.Now()
	total, err := crmTotal(ctx, client, crmBase, token, tgt.Entity)
	comp.DurationCRM = time.Since(start)
	if err != nil {
		comp.Error = fmt.Errorf("crm request failed: %w", err)
		return comp
	}
	comp.CRMTotal = total
	return comp
}

// crmTotal asks for a single-row page and reads total_count from the envelope.
func crmTotal(ctx context.Context, client *http.Client, base, token, entity string) (int, error) {
	if client == nil {
		return 0, errors.New("nil client")
	}
	q := url.Values{}
	q.Set("pagination[page]", "1")
	q.Set("pagination[pageSize]", "1")
	endpoint := strings.TrimRight(base, "/") + "/" + url.PathEscape(entity) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var envelope struct {
		Pagination *struct {
			TotalCount int `json:"total_count"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0, fmt.Errorf("decode body: %w", err)
	}
	if envelope.Pagination == nil {
		return 0, errors.New("response carries no pagination")
	}
	return envelope.Pagination.TotalCount, nil
}

func printReport(results []comparison) {
	fmt.Println("Migration Parity Report")
	fmt.Println("=======================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.match() {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s\n", status, res.Target.Entity)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		fmt.Printf("  Legacy total: %d | CRM total: %d (%s) | Critical: %t\n", res.LegacyTotal, res.CRMTotal, res.DurationCRM, res.Target.Critical)
	}
}
