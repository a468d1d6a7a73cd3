package redirect

import (
	"html/template"
	"io"

	"github.com/smallbiznis/reviewboost/internal/redirect/domain"
)

// The page copies the review text, then forwards to Google. The copy needs a
// user gesture on some browsers, so the button is the fallback.
var landingPage = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="robots" content="noindex">
<title>Review {{.BusinessName}}</title>
<style>
body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,sans-serif;max-width:32rem;margin:2rem auto;padding:0 1rem;color:#1f2937}
blockquote{background:#f3f4f6;border-radius:.5rem;padding:1rem;margin:1rem 0}
button{background:#2563eb;color:#fff;border:0;border-radius:.5rem;padding:.75rem 1.25rem;font-size:1rem;width:100%}
p.hint{color:#6b7280;font-size:.9rem}
</style>
</head>
<body>
<h1>Thanks for visiting {{.BusinessName}}!</h1>
<p>Your review is ready. We copied it for you, just paste it on the next page.</p>
<blockquote id="review">{{.ReviewText}}</blockquote>
<button id="go" type="button">Copy and leave a review</button>
<p class="hint" id="status"></p>
<script>
(function(){
  var text = {{.ReviewText}};
  var target = {{.TargetURL}};
  function go(){ window.location.href = target; }
  function copy(){
    if (navigator.clipboard && navigator.clipboard.writeText) {
      return navigator.clipboard.writeText(text);
    }
    return Promise.reject();
  }
  document.getElementById("go").addEventListener("click", function(){
    copy().then(go, go);
  });
  copy().then(function(){
    document.getElementById("status").textContent = "Copied! Redirecting...";
    setTimeout(go, 1500);
  }, function(){
    document.getElementById("status").textContent = "Tap the button to copy your review.";
  });
})();
</script>
</body>
</html>
`))

var notFoundPage = template.Must(template.New("not_found").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><meta name="robots" content="noindex"><title>Link not found</title></head>
<body><h1>Link not found</h1><p>This review link is no longer available.</p></body>
</html>
`))

func RenderLanding(w io.Writer, payload domain.Payload) error {
	return landingPage.Execute(w, payload)
}

func RenderNotFound(w io.Writer) error {
	return notFoundPage.Execute(w, nil)
}
