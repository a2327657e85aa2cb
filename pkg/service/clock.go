package service

import "time"

// Clock - источник времени для TTL и меток created_at/converted_at
type Clock interface {
	Now() time.Time
}

// SystemClock возвращает текущее время в UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
