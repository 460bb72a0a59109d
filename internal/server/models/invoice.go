package models

import "time"

// Invoice state. SENT is only ever written after the authority confirmed
// receipt; VOID is terminal.
const (
	EstadoUnsent = "UNSENT"
	EstadoSent   = "SENT"
	EstadoVoid   = "VOID"
)

// Invoice carries the emitter/receiver identity and totals needed to build
// a DTE. The surrounding CRUD layer owns creation and editing; this system
// only reads invoices and writes their state back.
type Invoice struct {
	ID        int64
	AccountID string

	TipoDTE      int
	Folio        int64
	FechaEmision time.Time

	RutEmisor         string
	RazonSocialEmisor string
	GiroEmisor        string
	DirOrigen         string
	ComunaOrigen      string

	RutReceptor         string
	RazonSocialReceptor string
	DireccionReceptor   string
	ComunaReceptor      string

	MontoNeto  int64
	IVA        int64
	MontoTotal int64

	Estado string

	Detalles []InvoiceLine
}

// InvoiceLine is one detail line. Output order follows slice order.
type InvoiceLine struct {
	Descripcion string
	Cantidad    float64
	PrecioUnit  int64
	MontoNeto   int64
}
