package noticeboard

import "time"

// Method tags which cascade strategy produced a result. The strings are the
// wire vocabulary consumed by reports and downstream storage.
type Method string

const (
	MethodTemplate   Method = "template"
	MethodAutoDetect Method = "auto_detect"
	MethodCustom     Method = "custom"
	MethodBrowser    Method = "selenium"
)

// Notice is one harvested board posting. Date is nil or a calendar-valid
// YYYY-MM-DD string; Link is nil or an absolute http(s) URL.
type Notice struct {
	Title string  `json:"title"`
	Date  *string `json:"date"`
	Link  *string `json:"link"`
}

// CrawlResult is the outcome of one extraction. Failures carry an Error
// message instead of a Method tag; Notices is never nil on success.
type CrawlResult struct {
	Success   bool      `json:"success"`
	Notices   []Notice  `json:"notices"`
	Method    Method    `json:"method,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
