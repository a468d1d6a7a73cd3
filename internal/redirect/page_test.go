package redirect

import (
	"bytes"
	"testing"

	"github.com/smallbiznis/reviewboost/internal/redirect/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderLandingEscapes(t *testing.T) {
	var buf bytes.Buffer
	err := RenderLanding(&buf, domain.Payload{
		BusinessName: "Joes <Pizza>",
		ReviewText:   `Loved it "</script><script>alert(1)</script>`,
		TargetURL:    "https://search.google.com/local/writereview?placeid=ChIJjoes",
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Joes &lt;Pizza&gt;")
	assert.NotContains(t, out, "<script>alert(1)</script>")
	assert.Contains(t, out, "writereview")
}

func TestRenderNotFound(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderNotFound(&buf))
	assert.Contains(t, buf.String(), "Link not found")
}
