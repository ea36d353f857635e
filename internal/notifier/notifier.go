package notifier

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"breakout-sentry/pkg/types"
)

// Interface 通知接口
type Interface interface {
	SendAlert(alert *types.BreakoutAlert) error
	SendBatchAlerts(alerts []*types.BreakoutAlert) error
}

// safePadding 安全地计算填充空格数量，避免负数
func safePadding(content string, totalWidth int) int {
	// 使用utf8.RuneCountInString计算实际显示字符数，而不是字节数
	runeCount := utf8.RuneCountInString(content)
	padding := totalWidth - runeCount - 4 // 4是边框字符数
	if padding < 0 {
		padding = 0
	}
	return padding
}

// directionLabel 突破方向的中文描述
func directionLabel(d types.Direction) string {
	if d == types.DirectionResistance {
		return "上破阻力"
	}
	return "下破支撑"
}

// directionEmoji 突破方向的图标
func directionEmoji(d types.Direction) string {
	if d == types.DirectionResistance {
		return "📈"
	}
	return "📉"
}

// confirmLabel 确认状态描述
func confirmLabel(confirmed bool) string {
	if confirmed {
		return "已确认（开盘收盘都越过水平）"
	}
	return "未确认（仅收盘越过水平）"
}

// breakoutPercent 突破幅度：收盘价相对被破水平的百分比
func breakoutPercent(alert *types.BreakoutAlert) float64 {
	if alert.Signal.Level == 0 {
		return 0
	}
	return (alert.Signal.Price - alert.Signal.Level) / alert.Signal.Level * 100
}

// buildTradingURL 根据交易对生成交易链接
func buildTradingURL(symbol string) string {
	// 将 BTC-USDT 格式转换为 BTCUSDT 格式
	pair := strings.ReplaceAll(symbol, "-", "")
	return fmt.Sprintf("https://www.okx.com/trade-spot/%s", strings.ToLower(pair))
}

// sortAlerts 按方向分组：阻力突破按幅度降序，支撑跌破按幅度升序（跌幅大的在前）
func sortAlerts(alerts []*types.BreakoutAlert) (up, down []*types.BreakoutAlert) {
	for _, alert := range alerts {
		if alert.Signal.Direction == types.DirectionResistance {
			up = append(up, alert)
		} else {
			down = append(down, alert)
		}
	}
	sort.Slice(up, func(i, j int) bool {
		return breakoutPercent(up[i]) > breakoutPercent(up[j])
	})
	sort.Slice(down, func(i, j int) bool {
		return breakoutPercent(down[i]) < breakoutPercent(down[j])
	})
	return up, down
}

// ConsoleNotifier 控制台通知器
type ConsoleNotifier struct{}

func NewConsoleNotifier() *ConsoleNotifier {
	return &ConsoleNotifier{}
}

func (cn *ConsoleNotifier) SendAlert(alert *types.BreakoutAlert) error {
	cn.printAlert(alert)
	return nil
}

func (cn *ConsoleNotifier) SendBatchAlerts(alerts []*types.BreakoutAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	if len(alerts) == 1 {
		return cn.SendAlert(alerts[0])
	}

	cn.printBatchAlerts(alerts)
	return nil
}

func (cn *ConsoleNotifier) printAlert(alert *types.BreakoutAlert) {
	sig := alert.Signal

	border := "╔" + strings.Repeat("═", 60) + "╗"
	bottomBorder := "╚" + strings.Repeat("═", 60) + "╝"

	fmt.Println()
	fmt.Println(border)

	title := fmt.Sprintf("%s 突破信号 - %s", directionEmoji(sig.Direction), sig.Symbol)
	padding := safePadding(title, 60)
	fmt.Printf("║ %s%s ║\n", title, strings.Repeat(" ", padding))
	fmt.Println("║" + strings.Repeat(" ", 60) + "║")

	lines := []string{
		fmt.Sprintf("方向: %s", directionLabel(sig.Direction)),
		fmt.Sprintf("触发价格: $%.6f", sig.Price),
		fmt.Sprintf("被破水平: $%.6f (%+.2f%%)", sig.Level, breakoutPercent(alert)),
		fmt.Sprintf("确认状态: %s", confirmLabel(sig.Confirmed)),
		fmt.Sprintf("K线时间: %s", sig.Time.Format("2006-01-02 15:04:05")),
		fmt.Sprintf("预警时间: %s", alert.AlertTime.Format("2006-01-02 15:04:05")),
	}
	if alert.ATRValue > 0 {
		lines = append(lines, fmt.Sprintf("ATR: %.6f (%.2f%%)", alert.ATRValue, alert.ATRPercent))
	}

	for _, line := range lines {
		padding := safePadding(line, 60)
		fmt.Printf("║ %s%s ║\n", line, strings.Repeat(" ", padding))
	}

	fmt.Println("║" + strings.Repeat(" ", 60) + "║")
	var hint string
	if sig.Direction == types.DirectionResistance {
		hint = "💡 价格突破近期阻力位，请关注市场动向！"
	} else {
		hint = "💡 价格跌破近期支撑位，请关注风险控制！"
	}
	padding = safePadding(hint, 60)
	fmt.Printf("║ %s%s ║\n", hint, strings.Repeat(" ", padding))

	fmt.Println(bottomBorder)
	fmt.Println()
}

func (cn *ConsoleNotifier) printBatchAlerts(alerts []*types.BreakoutAlert) {
	up, down := sortAlerts(alerts)

	border := "╔" + strings.Repeat("═", 80) + "╗"
	bottomBorder := "╚" + strings.Repeat("═", 80) + "╝"

	fmt.Println()
	fmt.Println(border)

	title := fmt.Sprintf("🚨 批量突破预警 - %d个信号", len(alerts))
	padding := safePadding(title, 80)
	fmt.Printf("║ %s%s ║\n", title, strings.Repeat(" ", padding))

	statsStr := fmt.Sprintf("📈 上破阻力: %d个  📉 下破支撑: %d个", len(up), len(down))
	padding = safePadding(statsStr, 80)
	fmt.Printf("║ %s%s ║\n", statsStr, strings.Repeat(" ", padding))
	fmt.Println("║" + strings.Repeat(" ", 80) + "║")

	printGroup := func(sectionTitle string, group []*types.BreakoutAlert) {
		if len(group) == 0 {
			return
		}
		padding := safePadding(sectionTitle, 80)
		fmt.Printf("║ %s%s ║\n", sectionTitle, strings.Repeat(" ", padding))

		for i, alert := range group {
			mark := ""
			if alert.Signal.Confirmed {
				mark = " ✓"
			}
			content := fmt.Sprintf("  %d. %s %s: $%.6f (%+.2f%%)%s",
				i+1, directionEmoji(alert.Signal.Direction), alert.Signal.Symbol,
				alert.Signal.Price, breakoutPercent(alert), mark)
			padding := safePadding(content, 80)
			fmt.Printf("║ %s%s ║\n", content, strings.Repeat(" ", padding))
		}
		fmt.Println("║" + strings.Repeat(" ", 80) + "║")
	}

	printGroup("📈 上破阻力 (按突破幅度排序):", up)
	printGroup("📉 下破支撑 (按跌破幅度排序):", down)

	timeStr := fmt.Sprintf("预警时间: %s", alerts[0].AlertTime.Format("2006-01-02 15:04:05"))
	padding = safePadding(timeStr, 80)
	fmt.Printf("║ %s%s ║\n", timeStr, strings.Repeat(" ", padding))

	fmt.Println(bottomBorder)
	fmt.Println()
}

// DingTalkNotifier 钉钉通知器
type DingTalkNotifier struct {
	webhookURL string
	secret     string
	httpClient *http.Client
}

type dingTalkMessage struct {
	MsgType  string `json:"msgtype"`
	Markdown struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	} `json:"markdown"`
}

type dingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// NewDingTalkNotifier 创建钉钉通知器，未配置webhook时降级为控制台
func NewDingTalkNotifier(webhookURL, secret string) Interface {
	if webhookURL == "" {
		zap.L().Info("🔧 未配置钉钉Webhook，使用控制台输出模式")
		return NewConsoleNotifier()
	}

	zap.L().Info("✅ 已配置钉钉通知服务")
	return &DingTalkNotifier{
		webhookURL: webhookURL,
		secret:     secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (dtn *DingTalkNotifier) SendAlert(alert *types.BreakoutAlert) error {
	sig := alert.Signal
	title := fmt.Sprintf("%s %s %s", directionEmoji(sig.Direction), sig.Symbol, directionLabel(sig.Direction))
	text := dtn.buildMarkdown(alert)

	if err := dtn.sendMarkdown(title, text); err != nil {
		zap.L().Error("❌ 钉钉发送失败，降级为控制台输出", zap.Error(err))
		return NewConsoleNotifier().SendAlert(alert)
	}

	zap.L().Info("✅ 钉钉通知已发送",
		zap.String("symbol", sig.Symbol),
		zap.String("direction", string(sig.Direction)))
	return nil
}

func (dtn *DingTalkNotifier) SendBatchAlerts(alerts []*types.BreakoutAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	if len(alerts) == 1 {
		return dtn.SendAlert(alerts[0])
	}

	title := fmt.Sprintf("🚨 批量突破预警 - %d个信号", len(alerts))
	text := dtn.buildBatchMarkdown(alerts)

	if err := dtn.sendMarkdown(title, text); err != nil {
		zap.L().Error("❌ 钉钉批量发送失败，降级为控制台输出", zap.Error(err))
		return NewConsoleNotifier().SendBatchAlerts(alerts)
	}

	zap.L().Info("✅ 钉钉批量通知已发送", zap.Int("count", len(alerts)))
	return nil
}

func (dtn *DingTalkNotifier) buildMarkdown(alert *types.BreakoutAlert) string {
	sig := alert.Signal
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## %s %s %s\n\n",
		directionEmoji(sig.Direction), sig.Symbol, directionLabel(sig.Direction)))
	sb.WriteString(fmt.Sprintf("- **触发价格**: $%.6f\n", sig.Price))
	sb.WriteString(fmt.Sprintf("- **被破水平**: $%.6f (%+.2f%%)\n", sig.Level, breakoutPercent(alert)))
	sb.WriteString(fmt.Sprintf("- **确认状态**: %s\n", confirmLabel(sig.Confirmed)))
	if alert.ATRValue > 0 {
		sb.WriteString(fmt.Sprintf("- **ATR**: %.6f (%.2f%%)\n", alert.ATRValue, alert.ATRPercent))
	}
	sb.WriteString(fmt.Sprintf("- **K线时间**: %s\n", sig.Time.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("\n[查看行情](%s)\n", buildTradingURL(sig.Symbol)))

	return sb.String()
}

func (dtn *DingTalkNotifier) buildBatchMarkdown(alerts []*types.BreakoutAlert) string {
	up, down := sortAlerts(alerts)
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## 🚨 批量突破预警 - %d个信号\n\n", len(alerts)))

	writeGroup := func(header string, group []*types.BreakoutAlert) {
		if len(group) == 0 {
			return
		}
		sb.WriteString(header + "\n\n")
		for i, alert := range group {
			mark := ""
			if alert.Signal.Confirmed {
				mark = " ✓"
			}
			sb.WriteString(fmt.Sprintf("%d. **%s**: $%.6f (%+.2f%%)%s\n",
				i+1, alert.Signal.Symbol, alert.Signal.Price, breakoutPercent(alert), mark))
		}
		sb.WriteString("\n")
	}

	writeGroup("### 📈 上破阻力", up)
	writeGroup("### 📉 下破支撑", down)

	sb.WriteString(fmt.Sprintf("预警时间: %s\n", alerts[0].AlertTime.Format("2006-01-02 15:04:05")))
	return sb.String()
}

// sendMarkdown 发送钉钉markdown消息，配置了secret时附加HMAC签名
func (dtn *DingTalkNotifier) sendMarkdown(title, text string) error {
	msg := dingTalkMessage{MsgType: "markdown"}
	msg.Markdown.Title = title
	msg.Markdown.Text = text

	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化钉钉消息失败: %v", err)
	}

	requestURL := dtn.webhookURL
	if dtn.secret != "" {
		timestamp := time.Now().UnixMilli()
		sign := dtn.sign(timestamp)
		requestURL = fmt.Sprintf("%s&timestamp=%d&sign=%s", dtn.webhookURL, timestamp, sign)
	}

	resp, err := dtn.httpClient.Post(requestURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %v", err)
	}
	defer resp.Body.Close()

	var dtResp dingTalkResponse
	if err := json.NewDecoder(resp.Body).Decode(&dtResp); err != nil {
		return fmt.Errorf("解析响应失败: %v", err)
	}

	if dtResp.ErrCode != 0 {
		return fmt.Errorf("钉钉API错误: %d - %s", dtResp.ErrCode, dtResp.ErrMsg)
	}

	return nil
}

// sign 钉钉加签：HMAC-SHA256(timestamp + "\n" + secret)后base64并URL编码
func (dtn *DingTalkNotifier) sign(timestamp int64) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, dtn.secret)
	h := hmac.New(sha256.New, []byte(dtn.secret))
	h.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(h.Sum(nil))
	return url.QueryEscape(signature)
}

// PushPlusNotifier PushPlus通知器
type PushPlusNotifier struct {
	userToken  string
	to         string // 好友令牌，多人用逗号分隔
	httpClient *http.Client
}

type pushPlusRequest struct {
	Token    string `json:"token"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Template string `json:"template"`
	To       string `json:"to,omitempty"` // 好友令牌，给朋友发送通知
}

type pushPlusResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data string `json:"data"`
}

// NewPushPlusNotifier 创建PushPlus通知器，未配置token时降级为控制台
func NewPushPlusNotifier(userToken, to string) Interface {
	if userToken == "" {
		zap.L().Info("🔧 未配置PushPlus User Token，使用控制台输出模式")
		return NewConsoleNotifier()
	}

	if to != "" {
		zap.L().Info("✅ 已配置PushPlus通知服务（包含好友推送）", zap.String("to", to))
	} else {
		zap.L().Info("✅ 已配置PushPlus通知服务")
	}

	return &PushPlusNotifier{
		userToken: userToken,
		to:        to,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (ppn *PushPlusNotifier) SendAlert(alert *types.BreakoutAlert) error {
	sig := alert.Signal
	title := fmt.Sprintf("%s 突破预警 - %s", directionEmoji(sig.Direction), sig.Symbol)
	content := ppn.buildHTMLContent(alert)

	if err := ppn.sendPushPlusMessage(title, content); err != nil {
		zap.L().Error("❌ PushPlus发送失败，降级为控制台输出", zap.Error(err))
		return NewConsoleNotifier().SendAlert(alert)
	}

	zap.L().Info("✅ PushPlus通知已发送",
		zap.String("symbol", sig.Symbol),
		zap.String("direction", string(sig.Direction)))
	return nil
}

func (ppn *PushPlusNotifier) SendBatchAlerts(alerts []*types.BreakoutAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	if len(alerts) == 1 {
		return ppn.SendAlert(alerts[0])
	}

	title := fmt.Sprintf("📊 批量突破预警 - %d个信号", len(alerts))
	content := ppn.buildBatchHTMLContent(alerts)

	if err := ppn.sendPushPlusMessage(title, content); err != nil {
		zap.L().Error("❌ PushPlus批量发送失败，降级为控制台输出", zap.Error(err))
		return NewConsoleNotifier().SendBatchAlerts(alerts)
	}

	zap.L().Info("✅ PushPlus批量通知已发送", zap.Int("count", len(alerts)))
	return nil
}

func (ppn *PushPlusNotifier) buildHTMLContent(alert *types.BreakoutAlert) string {
	sig := alert.Signal

	color := "#00C851" // 绿色表示上破
	if sig.Direction == types.DirectionSupport {
		color = "#FF4444" // 红色表示下破
	}

	atrRow := ""
	if alert.ATRValue > 0 {
		atrRow = fmt.Sprintf(`<p><strong>ATR:</strong> %.6f (%.2f%%)</p>`, alert.ATRValue, alert.ATRPercent)
	}

	tradingURL := buildTradingURL(sig.Symbol)
	return fmt.Sprintf(`
<div style="border: 2px solid %s; border-radius: 10px; padding: 20px; margin: 10px; background-color: #f9f9f9;">
    <h2 style="color: %s; text-align: center; margin-top: 0;">%s %s</h2>

    <div style="background-color: white; padding: 15px; border-radius: 8px; margin: 10px 0;">
        <p><strong>交易对:</strong> <a href="%s" style="font-size: 18px; color: #1890ff; text-decoration: none;" target="_blank">%s 🔗</a></p>
        <p><strong>触发价格:</strong> <span style="font-size: 16px; color: #333;">$%.6f</span></p>
        <p><strong>被破水平:</strong> <span style="font-size: 16px; color: #333;">$%.6f</span></p>
        <p><strong>突破幅度:</strong> <span style="font-size: 18px; font-weight: bold; color: %s;">%+.2f%%</span></p>
        <p><strong>确认状态:</strong> <span style="color: #666;">%s</span></p>
        %s
        <p><strong>K线时间:</strong> <span style="color: #666;">%s</span></p>
    </div>
</div>
`,
		color, color, directionEmoji(sig.Direction), directionLabel(sig.Direction),
		tradingURL, sig.Symbol,
		sig.Price,
		sig.Level,
		color, breakoutPercent(alert),
		confirmLabel(sig.Confirmed),
		atrRow,
		sig.Time.Format("2006-01-02 15:04:05"))
}

func (ppn *PushPlusNotifier) buildBatchHTMLContent(alerts []*types.BreakoutAlert) string {
	up, down := sortAlerts(alerts)

	content := fmt.Sprintf(`
<div style="border: 2px solid #FF6B6B; border-radius: 10px; padding: 20px; margin: 10px; background-color: #f9f9f9;">
    <h2 style="color: #FF6B6B; text-align: center; margin-top: 0;">🚨 批量突破预警</h2>

    <div style="background-color: #E3F2FD; padding: 15px; border-radius: 8px; margin: 10px 0;">
        <p style="margin: 5px 0;">📈 上破阻力: <span style="color: #00C851; font-weight: bold;">%d个</span></p>
        <p style="margin: 5px 0;">📉 下破支撑: <span style="color: #FF4444; font-weight: bold;">%d个</span></p>
        <p style="margin: 5px 0;">🕐 预警时间: <span style="color: #666;">%s</span></p>
    </div>`,
		len(up), len(down), alerts[0].AlertTime.Format("2006-01-02 15:04:05"))

	buildTable := func(header, headerColor string, group []*types.BreakoutAlert) string {
		if len(group) == 0 {
			return ""
		}
		table := fmt.Sprintf(`
    <div style="background-color: white; padding: 15px; border-radius: 8px; margin: 10px 0;">
        <h3 style="color: %s; margin-top: 0;">%s</h3>
        <table style="width: 100%%; border-collapse: collapse;">
            <tr>
                <th style="padding: 8px; text-align: left; border-bottom: 1px solid #ddd;">交易对</th>
                <th style="padding: 8px; text-align: right; border-bottom: 1px solid #ddd;">触发价格</th>
                <th style="padding: 8px; text-align: right; border-bottom: 1px solid #ddd;">幅度</th>
                <th style="padding: 8px; text-align: center; border-bottom: 1px solid #ddd;">确认</th>
            </tr>`, headerColor, header)

		for _, alert := range group {
			mark := "—"
			if alert.Signal.Confirmed {
				mark = "✓"
			}
			table += fmt.Sprintf(`
            <tr>
                <td style="padding: 8px; border-bottom: 1px solid #eee;">%s</td>
                <td style="padding: 8px; text-align: right; border-bottom: 1px solid #eee;">$%.6f</td>
                <td style="padding: 8px; text-align: right; border-bottom: 1px solid #eee;">%+.2f%%</td>
                <td style="padding: 8px; text-align: center; border-bottom: 1px solid #eee;">%s</td>
            </tr>`,
				alert.Signal.Symbol, alert.Signal.Price, breakoutPercent(alert), mark)
		}

		table += `
        </table>
    </div>`
		return table
	}

	content += buildTable("📈 上破阻力 (按突破幅度排序)", "#00C851", up)
	content += buildTable("📉 下破支撑 (按跌破幅度排序)", "#FF4444", down)
	content += `
</div>`

	return content
}

func (ppn *PushPlusNotifier) sendPushPlusMessage(title, content string) error {
	reqData := pushPlusRequest{
		Token:    ppn.userToken,
		Title:    title,
		Content:  content,
		Template: "html",
		To:       ppn.to,
	}

	jsonData, err := json.Marshal(reqData)
	if err != nil {
		return fmt.Errorf("序列化请求数据失败: %v", err)
	}

	resp, err := ppn.httpClient.Post(
		"http://www.pushplus.plus/send",
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %v", err)
	}
	defer resp.Body.Close()

	var pushResp pushPlusResponse
	if err := json.NewDecoder(resp.Body).Decode(&pushResp); err != nil {
		return fmt.Errorf("解析响应失败: %v", err)
	}

	if pushResp.Code != 200 {
		return fmt.Errorf("PushPlus API错误: %s", pushResp.Msg)
	}

	return nil
}
