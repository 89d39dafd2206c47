package bundle

// LiveReloadPath is where the dev server accepts live reload connections
const LiveReloadPath = "/livereload"

// LiveReloadClient reloads the page whenever the dev server sends a message.
// It connects to the origin that served the bundle so pages hosted elsewhere
// still reload.
const LiveReloadClient = `(() => {
  const src = document.currentScript ? document.currentScript.src : location.href;
  const url = new URL("` + LiveReloadPath + `", src);
  url.protocol = url.protocol === "https:" ? "wss:" : "ws:";
  new WebSocket(url).addEventListener("message", () => location.reload());
})();`
