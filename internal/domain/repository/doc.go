// Package repository define los tipos de dominio y los contratos de persistencia.
//
// Las implementaciones viven en internal/store (memory, pg). Los servicios
// dependen de estas interfaces, nunca de un driver concreto.
package repository
