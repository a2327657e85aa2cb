package events

import (
	"encoding/json"
	"time"

	"github.com/IPampurin/ReferralTracker/pkg/db"
)

// ClickEvent - сообщение о переходе по реферальной ссылке для внешних потребителей
type ClickEvent struct {
	Code          string    `json:"code"`
	ClickedAt     time.Time `json:"clicked_at"`
	UserAgent     string    `json:"user_agent,omitempty"`
	IPAddress     string    `json:"ip_address,omitempty"`
	Referer       string    `json:"referer,omitempty"`
	ChannelOrigin string    `json:"channel_origin,omitempty"`
}

// marshalClick сериализует переход в json
func marshalClick(c *db.Click) ([]byte, error) {

	return json.Marshal(ClickEvent{
		Code:          c.Code,
		ClickedAt:     c.ClickedAt,
		UserAgent:     c.UserAgent,
		IPAddress:     c.IPAddress,
		Referer:       c.Referer,
		ChannelOrigin: c.ChannelOrigin,
	})
}
