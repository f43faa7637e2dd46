package dashboard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Server struct {
	board *Board
}

func NewServer(board *Board) *Server {
	return &Server{board: board}
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/", s.handleUI)

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "pong"}) })
	return r
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.board.Status())
}

func (s *Server) handleUI(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(uiHTML))
}

// Run 阻塞直到 ctx 取消
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("dashboard listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

const uiHTML = `<!doctype html>
<html>
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
  <title>coinjump</title>
  <style>
    body { font-family: ui-sans-serif, system-ui, -apple-system, Segoe UI, Roboto, Arial; margin: 24px; }
    table { border-collapse: collapse; }
    td, th { border-bottom: 1px solid #eee; padding: 4px 12px; text-align: left; }
    .muted { color:#666; font-size: 12px; }
    .active { color: #0a0; } .inactive { color: #a00; }
  </style>
</head>
<body>
  <h2>coinjump <span id="active"></span></h2>
  <table>
    <tr><th>当前持仓</th><td id="coin">-</td></tr>
    <tr><th>数量</th><td id="holding">-</td></tr>
    <tr><th>桥接计价</th><td id="balance">-</td></tr>
    <tr><th>最近结果</th><td id="outcome">-</td></tr>
    <tr><th>最近判定</th><td id="decision" class="muted">-</td></tr>
    <tr><th>错误</th><td id="error" class="muted">-</td></tr>
  </table>
  <h3>最近成交</h3>
  <table id="trades"><tr><th>时间</th><th>From</th><th>To</th><th>数量</th><th>获得</th></tr></table>
  <p class="muted">更新于 <span id="updated">-</span></p>
<script>
async function refresh() {
  const st = await (await fetch('/api/status')).json();
  document.getElementById('coin').textContent = st.current_coin || '-';
  document.getElementById('holding').textContent = st.holding || '-';
  document.getElementById('balance').textContent = st.balance ? st.balance + ' ' + st.bridge : '-';
  document.getElementById('outcome').textContent = st.last_outcome || '-';
  document.getElementById('decision').textContent = st.last_decision || '-';
  document.getElementById('error').textContent = st.last_error || '-';
  document.getElementById('updated').textContent = st.last_update;
  const a = document.getElementById('active');
  a.textContent = st.is_active ? '运行中' : '未活跃';
  a.className = st.is_active ? 'active' : 'inactive';
  const t = document.getElementById('trades');
  while (t.rows.length > 1) t.deleteRow(1);
  for (const tr of st.last_trades || []) {
    const row = t.insertRow();
    [tr.time, tr.from, tr.to, tr.from_qty, tr.to_qty].forEach(v => { row.insertCell().textContent = v; });
  }
}
refresh();
setInterval(refresh, 5000);
</script>
</body>
</html>`
