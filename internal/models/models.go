package models

import (
	"time"
	"unicode/utf8"
)

type UserCredential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Image is the metadata of one object in the blob container. Name is unique
// within the container.
type Image struct {
	Name        string     `json:"name"`
	URL         string     `json:"url"`
	ContentType string     `json:"contentType"`
	CreatedOn   *time.Time `json:"createdOn"`
	Size        int64      `json:"size"`
}

type ImagePage struct {
	Images     []Image `json:"images"`
	TotalCount int     `json:"totalCount"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	TotalPages int     `json:"totalPages"`
}

type LoginEvent struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Success    bool      `json:"success"`
	RemoteAddr string    `json:"remoteAddr"`
	UserAgent  string    `json:"userAgent"`
	CreatedAt  time.Time `json:"createdAt"`
}

const (
	MaxAuditUsernameLen  = 64
	MaxAuditUserAgentLen = 256
)

// Bounded returns a copy with the client-supplied fields cut down to the
// audit limits.
func (e LoginEvent) Bounded() LoginEvent {
	e.Username = TruncateUTF8(e.Username, MaxAuditUsernameLen)
	e.UserAgent = TruncateUTF8(e.UserAgent, MaxAuditUserAgentLen)
	e.RemoteAddr = TruncateUTF8(e.RemoteAddr, MaxAuditUserAgentLen)
	return e
}

// TruncateUTF8 shortens s to at most n bytes without splitting a rune.
func TruncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
