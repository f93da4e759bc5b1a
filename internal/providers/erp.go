package providers

import (
	"fmt"
	"math"
	"sort"

	"github.com/strangeloopcanon/vei/internal/registry"
	"github.com/strangeloopcanon/vei/internal/toolerr"
)

// ERPLine is one PO/receipt/invoice line. Unit prices are integer cents.
type ERPLine struct {
	Item           string `json:"item"`
	Qty            int64  `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents"`
}

// PurchaseOrder tracks totals in integer cents.
type PurchaseOrder struct {
	ID         string    `json:"id"`
	Vendor     string    `json:"vendor"`
	Currency   string    `json:"currency"`
	Lines      []ERPLine `json:"lines"`
	TotalCents int64     `json:"total_cents"`
	Status     string    `json:"status"`
}

// Receipt records goods received against a PO.
type Receipt struct {
	ID    string    `json:"id"`
	POID  string    `json:"po_id"`
	Lines []ERPLine `json:"lines"`
}

// Invoice tracks paid_amount ≤ amount, in cents.
type Invoice struct {
	ID          string    `json:"id"`
	POID        string    `json:"po_id"`
	Lines       []ERPLine `json:"lines"`
	AmountCents int64     `json:"amount_cents"`
	PaidCents   int64     `json:"paid_cents"`
	Status      string    `json:"status"`
}

// ERP is the three-way-match provider. Invoice submission and payment
// posting fail probabilistically at the configured error rate; both draws
// consume the shared RNG stream.
type ERP struct {
	env      *Env
	pos      map[string]*PurchaseOrder
	receipts map[string]*Receipt
	invoices map[string]*Invoice
	poSeq    int
	rcptSeq  int
	invSeq   int
}

// NewERP creates an empty ERP twin.
func NewERP(env *Env) *ERP {
	return &ERP{
		env:      env,
		pos:      map[string]*PurchaseOrder{},
		receipts: map[string]*Receipt{},
		invoices: map[string]*Invoice{},
	}
}

func (e *ERP) Specs() []*registry.Spec {
	return []*registry.Spec{
		{
			Name:        "erp.create_po",
			Description: "Create a purchase order with line items",
			Permissions: []string{"erp.write"},
			SideEffects: []string{"erp"},
			LatencyMS:   150, JitterMS: 60, Cost: 0.05,
			Returns: "po_id and total",
			ArgsSchema: registry.ObjectSchema([]string{"vendor", "lines"}, map[string]any{
				"vendor":   map[string]any{"type": "string"},
				"currency": map[string]any{"type": "string"},
				"lines": map[string]any{
					"type":     "array",
					"minItems": 1,
					"items": registry.ObjectSchema([]string{"item", "qty", "unit_price"}, map[string]any{
						"item":       map[string]any{"type": "string"},
						"qty":        map[string]any{"type": "number"},
						"unit_price": map[string]any{"type": "number"},
					}),
				},
			}),
		},
		{
			Name:        "erp.get_po",
			Description: "Fetch a purchase order by id",
			Permissions: []string{"erp.read"},
			LatencyMS:   50, JitterMS: 20, Cost: 0.01,
		},
		{
			Name:        "erp.list_pos",
			Description: "List purchase orders",
			Permissions: []string{"erp.read"},
			LatencyMS:   50, JitterMS: 20, Cost: 0.01,
		},
		{
			Name:        "erp.receive_goods",
			Description: "Record a goods receipt against a purchase order",
			Permissions: []string{"erp.write"},
			SideEffects: []string{"erp"},
			LatencyMS:   120, JitterMS: 50, Cost: 0.03,
		},
		{
			Name:        "erp.submit_invoice",
			Description: "Submit a vendor invoice against a purchase order",
			Permissions: []string{"erp.write"},
			SideEffects: []string{"erp"},
			LatencyMS:   150, JitterMS: 60, Cost: 0.03,
		},
		{
			Name:        "erp.get_invoice",
			Description: "Fetch an invoice by id",
			Permissions: []string{"erp.read"},
			LatencyMS:   50, JitterMS: 20, Cost: 0.01,
		},
		{
			Name:        "erp.match_three_way",
			Description: "Reconcile PO, receipt and invoice amounts and quantities",
			Permissions: []string{"erp.read"},
			LatencyMS:   100, JitterMS: 40, Cost: 0.02,
			Returns: "MATCH or MISMATCH with reasons",
		},
		{
			Name:        "erp.post_payment",
			Description: "Post a payment against an invoice",
			Permissions: []string{"erp.write"},
			SideEffects: []string{"erp", "money"},
			LatencyMS:   200, JitterMS: 80, Cost: 0.05,
		},
	}
}

func (e *ERP) Handles(tool string) bool { return hasPrefix(tool, "erp") }

func (e *ERP) Call(tool string, args map[string]any) (map[string]any, error) {
	switch tool {
	case "erp.create_po":
		return e.createPO(args)
	case "erp.get_po":
		return e.getPO(args)
	case "erp.list_pos":
		return e.listPOs()
	case "erp.receive_goods":
		return e.receiveGoods(args)
	case "erp.submit_invoice":
		return e.submitInvoice(args)
	case "erp.get_invoice":
		return e.getInvoice(args)
	case "erp.match_three_way":
		return e.matchThreeWay(args)
	case "erp.post_payment":
		return e.postPayment(args)
	}
	return nil, toolerr.Newf(toolerr.CodeUnsupportedTool, "erp does not handle %s", tool)
}

// parseLines converts [{item, qty, unit_price}] into cent-denominated lines.
// Line totals round once, at cent granularity.
func parseLines(raw []any) []ERPLine {
	var lines []ERPLine
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		qty, _ := int64Arg(m, "qty")
		price, _ := floatArg(m, "unit_price")
		lines = append(lines, ERPLine{
			Item:           strArg(m, "item"),
			Qty:            qty,
			UnitPriceCents: int64(math.Round(price * 100)),
			TotalCents:     int64(math.Round(float64(qty) * price * 100)),
		})
	}
	return lines
}

func totalCents(lines []ERPLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.TotalCents
	}
	return total
}

func dollars(cents int64) float64 {
	return math.Round(float64(cents)) / 100
}

func (e *ERP) createPO(args map[string]any) (map[string]any, error) {
	lines := parseLines(listArg(args, "lines"))
	if len(lines) == 0 {
		return nil, toolerr.Newf(toolerr.CodeInvalidArgs, "create_po requires at least one line")
	}
	currency := strArg(args, "currency")
	if currency == "" {
		currency = "USD"
	}
	e.poSeq++
	po := &PurchaseOrder{
		ID:         fmt.Sprintf("PO-%d", 1000+e.poSeq),
		Vendor:     strArg(args, "vendor"),
		Currency:   currency,
		Lines:      lines,
		TotalCents: totalCents(lines),
		Status:     "OPEN",
	}
	e.pos[po.ID] = po
	return map[string]any{"po_id": po.ID, "total": dollars(po.TotalCents), "status": po.Status}, nil
}

func (e *ERP) getPO(args map[string]any) (map[string]any, error) {
	po, ok := e.pos[strArg(args, "po_id")]
	if !ok {
		return domainError("unknown_po", "no purchase order "+strArg(args, "po_id")), nil
	}
	return poMap(po), nil
}

func (e *ERP) listPOs() (map[string]any, error) {
	ids := make([]string, 0, len(e.pos))
	for id := range e.pos {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, poMap(e.pos[id]))
	}
	return map[string]any{"pos": out}, nil
}

func (e *ERP) receiveGoods(args map[string]any) (map[string]any, error) {
	po, ok := e.pos[strArg(args, "po_id")]
	if !ok {
		return domainError("unknown_po", "no purchase order "+strArg(args, "po_id")), nil
	}
	lines := parseLines(listArg(args, "lines"))
	if len(lines) == 0 {
		lines = append([]ERPLine(nil), po.Lines...)
	}
	e.rcptSeq++
	r := &Receipt{ID: fmt.Sprintf("RCPT-%d", 5000+e.rcptSeq), POID: po.ID, Lines: lines}
	e.receipts[r.ID] = r
	po.Status = "RECEIVED"
	return map[string]any{"receipt_id": r.ID, "po_id": po.ID}, nil
}

func (e *ERP) submitInvoice(args map[string]any) (map[string]any, error) {
	po, ok := e.pos[strArg(args, "po_id")]
	if !ok {
		return domainError("unknown_po", "no purchase order "+strArg(args, "po_id")), nil
	}
	if rate := e.env.ERPErrorRate; rate > 0 && e.env.RNG.NextFloat() < rate {
		return domainError("validation_error", "invoice rejected by vendor portal validation"), nil
	}
	lines := parseLines(listArg(args, "lines"))
	if len(lines) == 0 {
		lines = append([]ERPLine(nil), po.Lines...)
	}
	amount := totalCents(lines)
	if v, ok := floatArg(args, "amount"); ok {
		amount = int64(math.Round(v * 100))
	}
	e.invSeq++
	inv := &Invoice{
		ID: fmt.Sprintf("INV-%d", 9000+e.invSeq), POID: po.ID,
		Lines: lines, AmountCents: amount, Status: "SUBMITTED",
	}
	e.invoices[inv.ID] = inv
	return map[string]any{"invoice_id": inv.ID, "amount": dollars(inv.AmountCents)}, nil
}

func (e *ERP) getInvoice(args map[string]any) (map[string]any, error) {
	inv, ok := e.invoices[strArg(args, "invoice_id")]
	if !ok {
		return domainError("unknown_invoice", "no invoice "+strArg(args, "invoice_id")), nil
	}
	return invoiceMap(inv), nil
}

// matchThreeWay returns MATCH iff the PO and invoice amounts agree within
// one cent, every item's PO qty equals its invoice qty, and (when a receipt
// is given) no invoice qty exceeds the received qty.
func (e *ERP) matchThreeWay(args map[string]any) (map[string]any, error) {
	po, ok := e.pos[strArg(args, "po_id")]
	if !ok {
		return domainError("unknown_po", "no purchase order "+strArg(args, "po_id")), nil
	}
	inv, ok := e.invoices[strArg(args, "invoice_id")]
	if !ok {
		return domainError("unknown_invoice", "no invoice "+strArg(args, "invoice_id")), nil
	}
	var receipt *Receipt
	if id := strArg(args, "receipt_id"); id != "" {
		receipt, ok = e.receipts[id]
		if !ok {
			return domainError("unknown_invoice", "no receipt "+id), nil
		}
	}

	var reasons []string
	diff := po.TotalCents - inv.AmountCents
	if diff < -1 || diff > 1 {
		reasons = append(reasons, fmt.Sprintf("amount mismatch: po %.2f vs invoice %.2f", dollars(po.TotalCents), dollars(inv.AmountCents)))
	}

	poQty := qtyByItem(po.Lines)
	invQty := qtyByItem(inv.Lines)
	for _, item := range sortedItems(poQty, invQty) {
		if poQty[item] != invQty[item] {
			reasons = append(reasons, fmt.Sprintf("qty mismatch for %s: po %d vs invoice %d", item, poQty[item], invQty[item]))
		}
	}
	if receipt != nil {
		rcvQty := qtyByItem(receipt.Lines)
		for _, item := range sortedItems(invQty, nil) {
			if invQty[item] > rcvQty[item] {
				reasons = append(reasons, fmt.Sprintf("invoice qty for %s exceeds received %d", item, rcvQty[item]))
			}
		}
	}

	status := "MATCH"
	if len(reasons) > 0 {
		status = "MISMATCH"
	}
	out := map[string]any{"status": status}
	if len(reasons) > 0 {
		out["reasons"] = reasons
	}
	return out, nil
}

func (e *ERP) postPayment(args map[string]any) (map[string]any, error) {
	inv, ok := e.invoices[strArg(args, "invoice_id")]
	if !ok {
		return domainError("unknown_invoice", "no invoice "+strArg(args, "invoice_id")), nil
	}
	if rate := e.env.ERPErrorRate / 2; rate > 0 && e.env.RNG.NextFloat() < rate {
		return domainError("payment_rejected", "payment gateway rejected the transfer"), nil
	}
	amount := inv.AmountCents - inv.PaidCents
	if v, ok := floatArg(args, "amount"); ok {
		amount = int64(math.Round(v * 100))
	}
	if inv.PaidCents+amount > inv.AmountCents {
		return domainError("validation_error", "payment exceeds invoice amount"), nil
	}
	inv.PaidCents += amount
	if inv.PaidCents == inv.AmountCents {
		inv.Status = "PAID"
	}
	return map[string]any{
		"invoice_id": inv.ID, "paid_amount": dollars(inv.PaidCents), "status": inv.Status,
	}, nil
}

func qtyByItem(lines []ERPLine) map[string]int64 {
	out := map[string]int64{}
	for _, l := range lines {
		out[l.Item] += l.Qty
	}
	return out
}

func sortedItems(a, b map[string]int64) []string {
	seen := map[string]bool{}
	var items []string
	for item := range a {
		if !seen[item] {
			seen[item] = true
			items = append(items, item)
		}
	}
	for item := range b {
		if !seen[item] {
			seen[item] = true
			items = append(items, item)
		}
	}
	sort.Strings(items)
	return items
}

func poMap(po *PurchaseOrder) map[string]any {
	return map[string]any{
		"po_id": po.ID, "vendor": po.Vendor, "currency": po.Currency,
		"total": dollars(po.TotalCents), "status": po.Status, "lines": lineMaps(po.Lines),
	}
}

func invoiceMap(inv *Invoice) map[string]any {
	return map[string]any{
		"invoice_id": inv.ID, "po_id": inv.POID, "amount": dollars(inv.AmountCents),
		"paid_amount": dollars(inv.PaidCents), "status": inv.Status, "lines": lineMaps(inv.Lines),
	}
}

func lineMaps(lines []ERPLine) []map[string]any {
	out := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		out = append(out, map[string]any{
			"item": l.Item, "qty": l.Qty, "unit_price": dollars(l.UnitPriceCents),
		})
	}
	return out
}

func (e *ERP) Name() string { return "erp" }

func (e *ERP) StateSnapshot() map[string]any {
	return map[string]any{
		"pos": len(e.pos), "receipts": len(e.receipts), "invoices": len(e.invoices),
	}
}
