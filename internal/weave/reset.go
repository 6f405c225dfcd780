package weave

import (
	"encoding/binary"
	"fmt"

	"github.com/ecspool/weaver/classfile"
	"github.com/ecspool/weaver/internal/metadata"
)

// ResetStage injects the reset method unless the class already declares
// one. The injected body first calls the nearest inherited reset when the
// class is not a root, then stores the default value into every non-static,
// non-final field in declaration order.
type ResetStage struct{}

func (s *ResetStage) Name() string { return "reset" }

func (s *ResetStage) Apply(ctx *Context) error {
	meta := ctx.Meta
	if meta.HasReset {
		return nil
	}
	conv := ctx.Convention
	cf := ctx.Class
	pool := cf.Pool

	var code []byte
	maxStack := 0
	if inherited, ok := superReset(ctx); ok {
		if inherited.HasReset && !inherited.ResetOverridable() {
			return fmt.Errorf("cannot call %s.%s%s: it is private or static", inherited.QualifiedName, conv.ResetMethod, metadata.ResetDescriptor)
		}
		ref, err := pool.FindOrAddMethodref(meta.SuperclassName, conv.ResetMethod, metadata.ResetDescriptor)
		if err != nil {
			return err
		}
		code = append(code, classfile.OpAload0, classfile.OpInvokespecial)
		code = binary.BigEndian.AppendUint16(code, ref)
		maxStack = 1
	}

	assigned := 0
	for _, f := range meta.Fields {
		if !f.Resettable() {
			continue
		}
		op, slots, err := classfile.DefaultValue(f.Descriptor)
		if err != nil {
			return err
		}
		ref, err := pool.FindOrAddFieldref(meta.QualifiedName, f.Name, f.Descriptor)
		if err != nil {
			return err
		}
		code = append(code, classfile.OpAload0, op, classfile.OpPutfield)
		code = binary.BigEndian.AppendUint16(code, ref)
		if 1+slots > maxStack {
			maxStack = 1 + slots
		}
		assigned++
	}
	code = append(code, classfile.OpReturn)

	body := &classfile.Code{MaxStack: uint16(maxStack), MaxLocals: 1, Bytecode: code}
	info, err := body.Bytes()
	if err != nil {
		return err
	}
	codeName, err := pool.FindOrAddUTF8(classfile.AttrCode)
	if err != nil {
		return err
	}
	nameIdx, err := pool.FindOrAddUTF8(conv.ResetMethod)
	if err != nil {
		return err
	}
	descIdx, err := pool.FindOrAddUTF8(metadata.ResetDescriptor)
	if err != nil {
		return err
	}

	cf.Methods = append(cf.Methods, classfile.Member{
		AccessFlags:     resetAccess(ctx),
		NameIndex:       nameIdx,
		DescriptorIndex: descIdx,
		Attributes:      []classfile.Attribute{{NameIndex: codeName, Info: info}},
	})
	ctx.Record("injected %s%s resetting %d fields", conv.ResetMethod, metadata.ResetDescriptor, assigned)
	return nil
}

// superReset returns the ancestor whose reset the injected method must call.
// A root has none: its old ancestry is replaced by the pooled base.
func superReset(ctx *Context) (*metadata.ClassMetadata, bool) {
	if ctx.Meta.Root {
		return nil, false
	}
	return ctx.Snapshot.NearestReset(ctx.Meta.QualifiedName)
}

// resetAccess is protected unless the reset being overridden is public,
// since an override may not narrow access. Injected ancestors inherit the
// access of the reset they override in turn.
func resetAccess(ctx *Context) uint16 {
	anc, ok := superReset(ctx)
	for ok && !anc.HasReset && !anc.Root {
		anc, ok = ctx.Snapshot.NearestReset(anc.QualifiedName)
	}
	if ok && anc.HasReset && anc.ResetAccess&classfile.AccPublic != 0 {
		return classfile.AccPublic
	}
	return classfile.AccProtected
}
