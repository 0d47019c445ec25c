package service

import (
	"sync"
	"time"

	"netsentry/internal/domain"
)

// EventType defines the type of event
type EventType string

const (
	EventNewAlert            EventType = "newAlert"
	EventDeviceStatusChanged EventType = "device.statusChanged"
	EventDeviceDiscovered    EventType = "device.discovered"
	EventScanStarted         EventType = "scan.started"
	EventScanCompleted       EventType = "scan.completed"
)

// Event represents an event that occurred in the system
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// NewAlertPayload is broadcast for every alert raised
type NewAlertPayload struct {
	Type       string          `json:"type"`
	Severity   domain.Severity `json:"severity"`
	Message    string          `json:"message"`
	DeviceID   string          `json:"deviceId"`
	DeviceName string          `json:"deviceName"`
	DeviceIP   string          `json:"deviceIp"`
	Timestamp  time.Time       `json:"timestamp"`
	Value      float64         `json:"value"`
	Threshold  float64         `json:"threshold"`
}

// NewAlertEvent builds a newAlert event; device is nil for system alerts
func NewAlertEvent(alert domain.Alert, device *domain.Device) Event {
	p := NewAlertPayload{
		Type:      alert.Type,
		Severity:  alert.Severity,
		Message:   alert.Message,
		DeviceID:  alert.DeviceID,
		Timestamp: alert.Timestamp,
		Value:     alert.Value,
		Threshold: alert.Threshold,
	}
	if device != nil {
		p.DeviceName = device.Name()
		p.DeviceIP = device.Address
	} else {
		p.DeviceName = "System"
	}
	return Event{Type: EventNewAlert, Payload: p}
}

// StatusChangedPayload is broadcast when a device flips online/offline
type StatusChangedPayload struct {
	DeviceID       string              `json:"deviceId"`
	Address        string              `json:"address"`
	Status         domain.DeviceStatus `json:"status"`
	ResponseTimeMs *float64            `json:"responseTimeMs"`
	Timestamp      time.Time           `json:"timestamp"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Unsubscribe removes a subscriber
func (eb *EventBus) Unsubscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subscribers {
		if sub == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}

// PublishDiscoveryEvent lets the bulk scanner publish without importing Event
func (eb *EventBus) PublishDiscoveryEvent(eventType string, payload interface{}) {
	eb.Publish(Event{Type: EventType(eventType), Payload: payload})
}
