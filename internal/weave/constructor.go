package weave

import (
	"fmt"

	"github.com/ecspool/weaver/classfile"
)

// ConstructorStage points the super-constructor call of each constructor in
// a root class at the pooled base. The rest of the constructor is kept
// verbatim.
type ConstructorStage struct{}

func (s *ConstructorStage) Name() string { return "constructor" }

func (s *ConstructorStage) Apply(ctx *Context) error {
	if !ctx.Meta.Root {
		return nil
	}
	cf := ctx.Class
	for i := range cf.Methods {
		m := &cf.Methods[i]
		name, desc, err := cf.MemberName(*m)
		if err != nil {
			return err
		}
		if name != classfile.ConstructorName {
			continue
		}
		ai := cf.FindAttribute(m.Attributes, classfile.AttrCode)
		if ai < 0 {
			return fmt.Errorf("constructor %s has no code", desc)
		}
		code, err := classfile.ParseCode(m.Attributes[ai].Info)
		if err != nil {
			return fmt.Errorf("constructor %s: %w", desc, err)
		}
		redirected, err := redirectSuperCall(ctx, code.Bytecode)
		if err != nil {
			return fmt.Errorf("constructor %s: %w", desc, err)
		}
		if !redirected {
			continue
		}
		info, err := code.Bytes()
		if err != nil {
			return fmt.Errorf("constructor %s: %w", desc, err)
		}
		m.Attributes[ai].Info = info
		ctx.Record("constructor %s calls %s.<init>", desc, ctx.Meta.EffectiveSuperclassName)
	}
	return nil
}

// redirectSuperCall finds every invokespecial that initializes this object
// through the declared superclass and patches its Methodref operand in place.
// Compilers may emit one such call per branch. An invokespecial <init> is
// matched against pending "new" instructions of the same class first, so
// objects allocated inside the constructor keep their own initializer. It
// returns false when the constructor only delegates to another constructor
// of the same class.
func redirectSuperCall(ctx *Context, code []byte) (bool, error) {
	ins, err := classfile.Instructions(code)
	if err != nil {
		return false, err
	}
	pool := ctx.Class.Pool
	oldSuper := ctx.Meta.SuperclassName
	self := ctx.Meta.QualifiedName
	pending := make(map[string]int)
	redirected, delegates := 0, 0

	for _, in := range ins {
		switch in.Opcode {
		case classfile.OpNew:
			class, err := pool.ClassName(in.Operand16(code))
			if err != nil {
				return false, err
			}
			pending[class]++
		case classfile.OpInvokespecial:
			ref, err := pool.Member(in.Operand16(code))
			if err != nil {
				return false, err
			}
			if ref.Tag != classfile.TagMethodref || ref.Name != classfile.ConstructorName {
				continue
			}
			if pending[ref.Class] > 0 {
				pending[ref.Class]--
				continue
			}
			switch ref.Class {
			case self:
				delegates++
			case oldSuper:
				target, err := pool.FindOrAddMethodref(ctx.Meta.EffectiveSuperclassName, classfile.ConstructorName, ref.Descriptor)
				if err != nil {
					return false, err
				}
				in.SetOperand16(code, target)
				redirected++
			default:
				return false, fmt.Errorf("invokespecial %s.<init> at offset %d initializes neither %s nor %s", ref.Class, in.Offset, self, oldSuper)
			}
		}
	}
	if redirected == 0 && delegates == 0 {
		return false, fmt.Errorf("no call to %s.<init> found", oldSuper)
	}
	return redirected > 0, nil
}
