package handler

import (
	"html/template"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
)

const (
	callbackMessageConnected = "whoop-connected"
	callbackMessageError     = "whoop-error"
)

// callbackMessage is posted to the window that opened the consent popup
type callbackMessage struct {
	Type   string `json:"type"`
	Synced bool   `json:"synced,omitempty"`
	Error  string `json:"error,omitempty"`
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>WHOOP</title></head>
<body>
<p>{{if .Message.Error}}Connection failed. You can close this window.{{else}}Connected. You can close this window.{{end}}</p>
<script>
(function () {
  var message = {{.Message}};
  if (window.opener && !window.opener.closed) {
    window.opener.postMessage(message, {{.Origin}});
    window.close();
  } else {
    window.location.replace({{.Fallback}});
  }
})();
</script>
</body>
</html>
`))

func (h *IntegrationHandler) renderCallbackPage(c *gin.Context, status int, msg callbackMessage) {
	fallback := h.appURL(nil)
	if msg.Error != "" {
		fallback = h.appURL(map[string][]string{"error": {msg.Error}})
	}

	c.Render(status, render.HTML{
		Template: callbackPage,
		Name:     "callback",
		Data: gin.H{
			"Message":  msg,
			"Origin":   h.appOrigin,
			"Fallback": fallback,
		},
	})
}
