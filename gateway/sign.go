package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"
)

var timeNowMillis = func() int64 { return time.Now().UnixMilli() }

// SignPayload 返回 base64 编码的请求体和对其做的 HMAC-SHA256 签名（hex）。
func SignPayload(body []byte, secret string) (payload, signature string) {
	payload = base64.StdEncoding.EncodeToString(body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return payload, hex.EncodeToString(mac.Sum(nil))
}
