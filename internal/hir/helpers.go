package hir

// HelperFn names one of the fixed runtime helper functions the backend may
// emit calls to (spec.md §6, "Helper ABI"). Arguments are always at least
// 32 bits wide; i1/i8/i16 are zero-extended by the caller before the call
// (spec.md §6).
type HelperFn uint8

const (
	HelperCtpopI32 HelperFn = iota
	HelperCtpopI64
	HelperUdivI64
	HelperSdivI64
	HelperUremI64
	HelperSremI64
	HelperFremF32
	HelperFremF64
	HelperFptosiF32I64
	HelperFptosiF64I64
	HelperFptouiF32I64
	HelperFptouiF64I64
	HelperFptoui4xi32F32
	HelperSitofpI64F32
	HelperSitofpI64F64
	HelperUitofpI64F32
	HelperUitofpI64F64
	HelperUitofp4xi32F32
	HelperBitcast8xi1I8
	HelperBitcast16xi1I16
	HelperBitcastI8_8xi1
	HelperBitcastI16_16xi1
	HelperMemcpy
	HelperMemmove
	HelperMemset
	HelperSetjmp
	HelperLongjmp
	HelperReadTP
)

var helperNames = [...]string{
	HelperCtpopI32:         "__subzero_ctpop_i32",
	HelperCtpopI64:         "__subzero_ctpop_i64",
	HelperUdivI64:          "__subzero_udiv_i64",
	HelperSdivI64:          "__subzero_sdiv_i64",
	HelperUremI64:          "__subzero_urem_i64",
	HelperSremI64:          "__subzero_srem_i64",
	HelperFremF32:          "__subzero_frem_f32",
	HelperFremF64:          "__subzero_frem_f64",
	HelperFptosiF32I64:     "__subzero_fptosi_f32_i64",
	HelperFptosiF64I64:     "__subzero_fptosi_f64_i64",
	HelperFptouiF32I64:     "__subzero_fptoui_f32_i64",
	HelperFptouiF64I64:     "__subzero_fptoui_f64_i64",
	HelperFptoui4xi32F32:   "__subzero_fptoui_4xi32_f32",
	HelperSitofpI64F32:     "__subzero_sitofp_i64_f32",
	HelperSitofpI64F64:     "__subzero_sitofp_i64_f64",
	HelperUitofpI64F32:     "__subzero_uitofp_i64_f32",
	HelperUitofpI64F64:     "__subzero_uitofp_i64_f64",
	HelperUitofp4xi32F32:   "__subzero_uitofp_4xi32_4xf32",
	HelperBitcast8xi1I8:    "__subzero_bitcast_8xi1_i8",
	HelperBitcast16xi1I16:  "__subzero_bitcast_16xi1_i16",
	HelperBitcastI8_8xi1:   "__subzero_bitcast_i8_8xi1",
	HelperBitcastI16_16xi1: "__subzero_bitcast_i16_16xi1",
	HelperMemcpy:           "memcpy",
	HelperMemmove:          "memmove",
	HelperMemset:           "memset",
	HelperSetjmp:           "setjmp",
	HelperLongjmp:          "longjmp",
	HelperReadTP:           "__subzero_read_tp",
}

func (h HelperFn) String() string { return helperNames[h] }

// CallTargetForHelper builds the CallTarget the lowering emits for a
// helper-ABI call, mirroring frugal's ssa.IrCall using a hir.CallHandle of
// kind CCall for external C-ABI helpers (ssa/ir.go's IrCall.String, case
// hir.CCall).
func CallTargetForHelper(h HelperFn) *CallTarget {
	return &CallTarget{Kind: CCall, Sym: h.String()}
}
