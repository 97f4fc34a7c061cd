package nic

import (
	"strconv"
	"strings"

	"civil-erp/internal/model"

	"github.com/shopspring/decimal"
)

const payloadVersion = "1.1"

// InvoicePayload is the FORM-INV-01 schema accepted by the portal.
type InvoicePayload struct {
	Version    string         `json:"Version"`
	TranDtls   TranDetails    `json:"TranDtls"`
	DocDtls    DocDetails     `json:"DocDtls"`
	SellerDtls PartyDetails   `json:"SellerDtls"`
	BuyerDtls  PartyDetails   `json:"BuyerDtls"`
	DispDtls   *DispatchBlock `json:"DispDtls,omitempty"`
	ShipDtls   *ShipBlock     `json:"ShipDtls,omitempty"`
	ItemList   []Item         `json:"ItemList"`
	ValDtls    ValueDetails   `json:"ValDtls"`
	PayDtls    PayDetails     `json:"PayDtls"`
	EwbDtls    *EwayBillBlock `json:"EwbDtls,omitempty"`
}

type TranDetails struct {
	TaxSch      string `json:"TaxSch"`
	SupTyp      string `json:"SupTyp"`
	RegRev      string `json:"RegRev"`
	IgstOnIntra string `json:"IgstOnIntra"`
}

type DocDetails struct {
	Typ string `json:"Typ"`
	No  string `json:"No"`
	Dt  string `json:"Dt"`
}

type PartyDetails struct {
	Gstin string `json:"Gstin"`
	LglNm string `json:"LglNm"`
	TrdNm string `json:"TrdNm"`
	Pos   string `json:"Pos,omitempty"` // buyer only
	Addr1 string `json:"Addr1"`
	Loc   string `json:"Loc"`
	Pin   int    `json:"Pin"`
	Stcd  string `json:"Stcd"`
}

type DispatchBlock struct {
	Nm    string `json:"Nm"`
	Addr1 string `json:"Addr1"`
	Loc   string `json:"Loc"`
	Pin   int    `json:"Pin"`
	Stcd  string `json:"Stcd"`
}

type ShipBlock struct {
	Gstin string `json:"Gstin"`
	LglNm string `json:"LglNm"`
	Addr1 string `json:"Addr1"`
	Loc   string `json:"Loc"`
	Pin   int    `json:"Pin"`
	Stcd  string `json:"Stcd"`
}

type Item struct {
	SlNo       string  `json:"SlNo"`
	PrdDesc    string  `json:"PrdDesc"`
	IsServc    string  `json:"IsServc"`
	HsnCd      string  `json:"HsnCd"`
	Qty        float64 `json:"Qty"`
	Unit       string  `json:"Unit"`
	UnitPrice  float64 `json:"UnitPrice"`
	Discount   float64 `json:"Discount"`
	TotAmt     float64 `json:"TotAmt"`
	AssAmt     float64 `json:"AssAmt"`
	GstRt      float64 `json:"GstRt"`
	CgstAmt    float64 `json:"CgstAmt"`
	SgstAmt    float64 `json:"SgstAmt"`
	IgstAmt    float64 `json:"IgstAmt"`
	CesAmt     float64 `json:"CesAmt"`
	TotItemVal float64 `json:"TotItemVal"`
}

type ValueDetails struct {
	AssVal    float64 `json:"AssVal"`
	CgstVal   float64 `json:"CgstVal"`
	SgstVal   float64 `json:"SgstVal"`
	IgstVal   float64 `json:"IgstVal"`
	CesVal    float64 `json:"CesVal"`
	Discount  float64 `json:"Discount"`
	OthChrg   float64 `json:"OthChrg"`
	RndOffAmt float64 `json:"RndOffAmt"`
	TotInvVal float64 `json:"TotInvVal"`
}

type PayDetails struct {
	Nm   string `json:"Nm"`
	Mode string `json:"Mode"`
}

type EwayBillBlock struct {
	TransId   string `json:"TransId"`
	TransName string `json:"TransName"`
	TransMode string `json:"TransMode"`
	Distance  int    `json:"Distance"`
	VehNo     string `json:"VehNo"`
	VehType   string `json:"VehType"`
}

// BuildInvoicePayload maps the internal invoice onto the portal schema.
// Optional blocks are emitted only when their trigger field is set:
// dispatch name for DispDtls, ship-to GSTIN for ShipDtls, transporter id for EwbDtls.
func BuildInvoicePayload(req *model.EInvoiceRequest) *InvoicePayload {
	items := make([]Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, Item{
			SlNo:       strconv.Itoa(it.SlNo),
			PrdDesc:    it.ItemDescription,
			IsServc:    "N",
			HsnCd:      it.HSNCode,
			Qty:        num(it.Quantity),
			Unit:       it.Unit,
			UnitPrice:  num(it.UnitPrice),
			Discount:   num(it.Discount),
			TotAmt:     num(it.Quantity.Mul(it.UnitPrice)),
			AssAmt:     num(it.TaxableValue),
			GstRt:      num(it.GSTRate),
			CgstAmt:    num(it.CGSTAmount),
			SgstAmt:    num(it.SGSTAmount),
			IgstAmt:    num(it.IGSTAmount),
			CesAmt:     num(it.CessAmount),
			TotItemVal: num(it.TotalItemValue),
		})
	}

	p := &InvoicePayload{
		Version: payloadVersion,
		TranDtls: TranDetails{
			TaxSch:      "GST",
			SupTyp:      req.SupplyType,
			RegRev:      "N",
			IgstOnIntra: "N",
		},
		DocDtls: DocDetails{
			Typ: req.DocumentType,
			No:  req.DocumentNumber,
			Dt:  req.DocumentDate,
		},
		SellerDtls: PartyDetails{
			Gstin: req.SellerGSTIN,
			LglNm: req.SellerLegalName,
			TrdNm: orDefault(req.SellerTradeName, req.SellerLegalName),
			Addr1: req.SellerAddress,
			Loc:   req.SellerLocation,
			Pin:   pin(req.SellerPincode),
			Stcd:  req.SellerStateCode,
		},
		BuyerDtls: PartyDetails{
			Gstin: req.BuyerGSTIN,
			LglNm: req.BuyerLegalName,
			TrdNm: orDefault(req.BuyerTradeName, req.BuyerLegalName),
			Pos:   req.BuyerPOS,
			Addr1: req.BuyerAddress,
			Loc:   req.BuyerLocation,
			Pin:   pin(req.BuyerPincode),
			Stcd:  req.BuyerStateCode,
		},
		ItemList: items,
		ValDtls: ValueDetails{
			AssVal:    num(req.TotalTaxableValue),
			CgstVal:   num(req.TotalCGST),
			SgstVal:   num(req.TotalSGST),
			IgstVal:   num(req.TotalIGST),
			CesVal:    num(req.TotalCess),
			Discount:  num(req.TotalDiscount),
			OthChrg:   num(req.OtherCharges),
			RndOffAmt: num(req.RoundOff),
			TotInvVal: num(req.TotalInvoiceValue),
		},
		PayDtls: PayDetails{
			Nm:   req.BuyerLegalName,
			Mode: req.PaymentMode,
		},
	}

	if req.DispatchFromName != "" {
		p.DispDtls = &DispatchBlock{
			Nm:    req.DispatchFromName,
			Addr1: req.DispatchFromAddress,
			Loc:   req.DispatchFromLocation,
			Pin:   pin(req.DispatchFromPincode),
			Stcd:  req.DispatchFromStateCode,
		}
	}
	if req.ShipToGSTIN != "" {
		p.ShipDtls = &ShipBlock{
			Gstin: req.ShipToGSTIN,
			LglNm: req.ShipToLegalName,
			Addr1: req.ShipToAddress,
			Loc:   req.ShipToLocation,
			Pin:   pin(req.ShipToPincode),
			Stcd:  req.ShipToStateCode,
		}
	}
	if req.TransporterID != "" {
		distance := 0
		if req.TransportDistance != nil {
			distance = *req.TransportDistance
		}
		p.EwbDtls = &EwayBillBlock{
			TransId:   req.TransporterID,
			TransName: req.TransporterName,
			TransMode: req.TransportMode,
			Distance:  distance,
			VehNo:     req.VehicleNumber,
			VehType:   req.VehicleType,
		}
	}
	return p
}

// ValidPincode reports whether s is a 6-digit Indian postal code.
func ValidPincode(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// pin returns 0 for an empty or malformed code.
func pin(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func num(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
