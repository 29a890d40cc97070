package template

const layoutHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Subject}}</title>
</head>
<body style="margin:0;padding:20px;background-color:#f5f5f5;font-family:{{.FontFamily}};">
<div style="max-width:600px;margin:0 auto;background:#ffffff;border-radius:12px;overflow:hidden;box-shadow:0 4px 20px rgba(0,0,0,0.1);">
{{- if .ShowBanner}}
  <div style="background-color:{{.PrimaryColor}};padding:32px 30px;text-align:center;">
    <h1 style="margin:0;font-size:24px;color:#ffffff;">{{.HeaderTitle}}</h1>
    {{- if .MainHeading}}
    <p style="margin:12px 0 0;font-size:16px;color:#ffffff;opacity:0.9;">{{.MainHeading}}</p>
    {{- end}}
  </div>
{{- end}}
  <div style="padding:40px 30px;">
    {{- if .Greeting}}
    <p style="margin:0 0 20px 0;color:#333333;font-size:16px;">{{.Greeting}}</p>
    {{- end}}
    <div style="color:#555555;line-height:1.6;font-size:16px;">
    {{- range .Paragraphs}}
      <p style="margin:0 0 16px 0;">{{range $i, $line := .}}{{if $i}}<br>{{end}}{{$line}}{{end}}</p>
    {{- end}}
    </div>
    {{- if .ShowFeatures}}
    <table width="100%" cellpadding="0" cellspacing="0" style="margin:24px 0;">
      {{- range .Features}}
      <tr><td style="padding:10px 14px;border-left:4px solid {{$.AccentColor}};background-color:#f9fafb;color:#333333;font-size:15px;">{{.}}</td></tr>
      {{- end}}
    </table>
    {{- end}}
    {{- if .ShowButton}}
    <div style="text-align:center;margin:32px 0;">
      <a href="{{.ButtonURL}}" style="display:inline-block;padding:14px 28px;background-color:{{.PrimaryColor}};color:#ffffff;text-decoration:none;border-radius:8px;font-weight:600;">{{.ButtonText}}</a>
    </div>
    {{- end}}
    <div style="margin-top:40px;padding-top:20px;border-top:1px solid #e9ecef;color:#555555;line-height:1.5;">
    {{- range $i, $line := .Signature}}{{if $i}}<br>{{end}}{{$line}}{{end}}
    </div>
  </div>
</div>
{{- if .OpenPixel}}
<img src="{{.OpenPixel}}" width="1" height="1" alt="" style="display:block;border:0;">
{{- end}}
</body>
</html>
`
