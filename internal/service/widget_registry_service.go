package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"tms-widget/internal/entity"
)

var ErrWidgetNotFound = errors.New("widget not found")

type IWidgetRegistryService interface {
	GetByDomain(domain string) (*entity.WidgetConfig, error)
	GetById(widgetId string) (*entity.WidgetConfig, error)
}

type widgetRegistryService struct {
	mu       sync.RWMutex
	byDomain map[string]entity.WidgetConfig
	byId     map[string]entity.WidgetConfig
}

// NewWidgetRegistryService indexes widgets by id and by domain. A widget's
// domain is its domain_url host, or its name when domain_url is empty.
func NewWidgetRegistryService(widgets []entity.WidgetConfig) IWidgetRegistryService {
	r := &widgetRegistryService{
		byDomain: make(map[string]entity.WidgetConfig),
		byId:     make(map[string]entity.WidgetConfig),
	}
	for _, w := range widgets {
		r.byId[w.Id] = w
		r.byDomain[normalizeDomain(widgetDomain(w))] = w
	}
	return r
}

// LoadWidgets reads a JSON array of widget configurations.
func LoadWidgets(path string) ([]entity.WidgetConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read widgets file: %w", err)
	}
	var widgets []entity.WidgetConfig
	if err := json.Unmarshal(raw, &widgets); err != nil {
		return nil, fmt.Errorf("failed to parse widgets file: %w", err)
	}
	return widgets, nil
}

// DemoWidget is served for localhost when no widgets file is configured.
func DemoWidget() entity.WidgetConfig {
	return entity.WidgetConfig{
		Id:              "demo-widget",
		Name:            "Demo Support",
		DomainUrl:       "localhost",
		IsActive:        true,
		PrimaryColor:    "#3b82f6",
		SecondaryColor:  "#6b7280",
		Position:        "bottom-right",
		WelcomeMessage:  "Hi! How can we help you today?",
		AgentName:       "Alex",
		ChatBubbleStyle: "modern",
		WidgetShape:     "rounded",
		WidgetSize:      "medium",
		AnimationStyle:  "smooth",
		SoundEnabled:    true,
		ShowPoweredBy:   true,
	}
}

func (r *widgetRegistryService) GetByDomain(domain string) (*entity.WidgetConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.byDomain[normalizeDomain(domain)]
	if !ok || !w.IsActive {
		return nil, ErrWidgetNotFound
	}
	return &w, nil
}

func (r *widgetRegistryService) GetById(widgetId string) (*entity.WidgetConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.byId[widgetId]
	if !ok || !w.IsActive {
		return nil, ErrWidgetNotFound
	}
	return &w, nil
}

func widgetDomain(w entity.WidgetConfig) string {
	if w.DomainUrl != "" {
		return w.DomainUrl
	}
	return w.Name
}

func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/:"); i >= 0 {
		d = d[:i]
	}
	return d
}
