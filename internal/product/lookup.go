package product

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	cacheTTL        = 24 * time.Hour
	maxCacheEntries = 1000
)

// Product holds the catalog data returned for a scanned barcode.
type Product struct {
	Barcode  string `json:"barcode"`
	Name     string `json:"name"`
	Brand    string `json:"brand,omitempty"`
	Quantity string `json:"quantity,omitempty"`
	Found    bool   `json:"found"`
}

// Service looks up products by barcode against the Open Food Facts API
// and caches results per barcode.
type Service struct {
	client  *http.Client
	baseURL string
	mu      sync.RWMutex
	cache   map[string]cacheEntry
}

type cacheEntry struct {
	product Product
	fetched time.Time
}

type Option func(*Service)

// WithBaseURL points the service at an alternate API root.
func WithBaseURL(url string) Option {
	return func(s *Service) {
		s.baseURL = url
	}
}

// NewService creates a lookup service backed by Open Food Facts.
func NewService(opts ...Option) *Service {
	s := &Service{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: "https://world.openfoodfacts.org/api/v0/product",
		cache:   make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup returns the product for a barcode. Results, including not-found
// answers, are cached for 24 hours. On fetch errors a stale cached result
// is returned rather than failing.
func (s *Service) Lookup(barcode string) (Product, error) {
	if !validBarcode(barcode) {
		return Product{}, fmt.Errorf("invalid barcode %q", barcode)
	}

	s.mu.RLock()
	entry, ok := s.cache[barcode]
	s.mu.RUnlock()
	if ok && time.Since(entry.fetched) < cacheTTL {
		return entry.product, nil
	}

	p, err := s.fetch(barcode)
	if err != nil {
		if ok {
			// Return stale data on error rather than clearing it.
			return entry.product, nil
		}
		return Product{}, err
	}

	s.mu.Lock()
	if len(s.cache) >= maxCacheEntries {
		s.pruneLocked()
	}
	s.cache[barcode] = cacheEntry{product: p, fetched: time.Now()}
	s.mu.Unlock()

	return p, nil
}

type apiResponse struct {
	Status  int `json:"status"`
	Product struct {
		ProductName string `json:"product_name"`
		Brands      string `json:"brands"`
		Quantity    string `json:"quantity"`
	} `json:"product"`
}

func (s *Service) fetch(barcode string) (Product, error) {
	url := fmt.Sprintf("%s/%s.json", s.baseURL, barcode)

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return Product{}, fmt.Errorf("create request: %w", err)
	}
	// Open Food Facts asks API consumers to identify themselves.
	req.Header.Set("User-Agent", "Larder/1.0 (self-hosted pantry tracker)")

	resp, err := s.client.Do(req)
	if err != nil {
		return Product{}, fmt.Errorf("product API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Product{Barcode: barcode}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Product{}, fmt.Errorf("product API returned status %d", resp.StatusCode)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return Product{}, fmt.Errorf("decode product response: %w", err)
	}

	if apiResp.Status != 1 {
		return Product{Barcode: barcode}, nil
	}

	return Product{
		Barcode:  barcode,
		Name:     apiResp.Product.ProductName,
		Brand:    apiResp.Product.Brands,
		Quantity: apiResp.Product.Quantity,
		Found:    true,
	}, nil
}

// pruneLocked drops expired entries. Caller must hold the write lock.
func (s *Service) pruneLocked() {
	for code, entry := range s.cache {
		if time.Since(entry.fetched) >= cacheTTL {
			delete(s.cache, code)
		}
	}
}

func validBarcode(code string) bool {
	if len(code) < 6 || len(code) > 14 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
