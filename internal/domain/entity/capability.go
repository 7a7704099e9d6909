package entity

import "sort"

// Capability es la unidad de permiso que concede un plan (ej. "backup.manual").
type Capability string

// Capacidades conocidas. Agregar una capacidad nueva es un cambio de datos en la
// matriz de planes; estas constantes solo nombran las que el código consulta.
const (
	CapFinanceEntry    Capability = "finance.entry"
	CapExportCSV       Capability = "export.csv"
	CapExportPDF       Capability = "export.pdf"
	CapSupportEmail    Capability = "support.email"
	CapBackupAutomatic Capability = "backup.automatic"
	CapWhatsAppChannel Capability = "whatsapp.channel"
	CapAgentSDR        Capability = "agent.sdr"
	CapAgentMarketing  Capability = "agent.marketing"
	CapWorkspaceGoogle Capability = "workspace.google"
	CapSupportPriority Capability = "support.priority"
	CapAgentScraper    Capability = "agent.scraper"
	CapWebSearch       Capability = "web.search"
	CapBackupManual    Capability = "backup.manual"
)

// CapabilitySet conjunto inmutable de capacidades resueltas para un usuario.
// El valor cero es un conjunto vacío válido.
type CapabilitySet struct {
	m map[Capability]struct{}
}

// NewCapabilitySet construye un conjunto a partir de una lista (ignora duplicados).
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	m := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		if c == "" {
			continue
		}
		m[c] = struct{}{}
	}
	return CapabilitySet{m: m}
}

// Has informa si el conjunto contiene la capacidad.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s.m[c]
	return ok
}

// Len cantidad de capacidades.
func (s CapabilitySet) Len() int { return len(s.m) }

// SubsetOf informa si todas las capacidades de s están en other.
func (s CapabilitySet) SubsetOf(other CapabilitySet) bool {
	for c := range s.m {
		if !other.Has(c) {
			return false
		}
	}
	return true
}

// Equal compara dos conjuntos por contenido.
func (s CapabilitySet) Equal(other CapabilitySet) bool {
	return s.Len() == other.Len() && s.SubsetOf(other)
}

// Union devuelve un conjunto nuevo con las capacidades de ambos.
func (s CapabilitySet) Union(other CapabilitySet) CapabilitySet {
	out := make([]Capability, 0, s.Len()+other.Len())
	out = append(out, s.Slice()...)
	out = append(out, other.Slice()...)
	return NewCapabilitySet(out...)
}

// Slice devuelve las capacidades ordenadas alfabéticamente (salida determinista).
func (s CapabilitySet) Slice() []Capability {
	out := make([]Capability, 0, len(s.m))
	for c := range s.m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings igual que Slice pero como []string (DTOs, persistencia).
func (s CapabilitySet) Strings() []string {
	caps := s.Slice()
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = string(c)
	}
	return out
}
